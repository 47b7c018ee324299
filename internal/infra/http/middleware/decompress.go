package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/kaliumosint/api/pkg/apierror"
)

// DecompressConfig configures the decompression middleware.
type DecompressConfig struct {
	// MaxCompressedSize caps the encoded body. Default 1MB.
	MaxCompressedSize int64
	// MaxDecompressedSize caps the decoded body. Default 4MB.
	MaxDecompressedSize int64
	// MaxCompressionRatio rejects likely decompression bombs. Default 100.
	MaxCompressionRatio float64
}

// DefaultDecompressConfig returns the default configuration.
func DefaultDecompressConfig() DecompressConfig {
	return DecompressConfig{
		MaxCompressedSize:   1 << 20,
		MaxDecompressedSize: 4 << 20,
		MaxCompressionRatio: 100,
	}
}

var errRatioExceeded = errors.New("compression ratio exceeded")

// Decompress decodes gzip or zstd request bodies so handlers always see
// plain JSON. Place it before BodyLimit so the decoded size is what counts.
func Decompress(cfg DecompressConfig) func(http.Handler) http.Handler {
	def := DefaultDecompressConfig()
	if cfg.MaxCompressedSize <= 0 {
		cfg.MaxCompressedSize = def.MaxCompressedSize
	}
	if cfg.MaxDecompressedSize <= 0 {
		cfg.MaxDecompressedSize = def.MaxDecompressedSize
	}
	if cfg.MaxCompressionRatio <= 0 {
		cfg.MaxCompressionRatio = def.MaxCompressionRatio
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding")))
			if !hasBody(r) || encoding == "" || encoding == "identity" {
				next.ServeHTTP(w, r)
				return
			}

			if encoding != "gzip" && encoding != "zstd" {
				apierror.New(http.StatusUnsupportedMediaType, apierror.CodeBadRequest,
					"Unsupported Content-Encoding").WriteJSONWithRequestID(w, GetRequestID(r.Context()))
				return
			}

			body, err := decodeBody(r.Body, encoding, cfg)
			if err != nil {
				apierror.BadRequest("Invalid compressed request body").WriteJSONWithRequestID(w, GetRequestID(r.Context()))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			r.Header.Del("Content-Encoding")
			next.ServeHTTP(w, r)
		})
	}
}

func decodeBody(body io.ReadCloser, encoding string, cfg DecompressConfig) ([]byte, error) {
	defer body.Close()

	compressed, err := io.ReadAll(io.LimitReader(body, cfg.MaxCompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("read compressed body: %w", err)
	}
	if int64(len(compressed)) > cfg.MaxCompressedSize {
		return nil, fmt.Errorf("compressed body exceeds %d bytes", cfg.MaxCompressedSize)
	}
	if len(compressed) == 0 {
		return []byte{}, nil
	}

	var reader io.Reader
	switch encoding {
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gr.Close()
		reader = gr
	case "zstd":
		//nolint:gosec // G115: MaxDecompressedSize is positive
		zr, err := zstd.NewReader(bytes.NewReader(compressed),
			zstd.WithDecoderMaxMemory(uint64(cfg.MaxDecompressedSize)),
			zstd.WithDecoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		reader = zr
	}

	decoded, err := io.ReadAll(io.LimitReader(reader, cfg.MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if int64(len(decoded)) > cfg.MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed body exceeds %d bytes", cfg.MaxDecompressedSize)
	}
	if float64(len(decoded))/float64(len(compressed)) > cfg.MaxCompressionRatio {
		return nil, errRatioExceeded
	}
	return decoded, nil
}
