package http

import (
	"fmt"
	"io"
	"net/http"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"text/tabwriter"
)

// RouteInfo holds information about a registered route.
type RouteInfo struct {
	Method  string
	Path    string
	Handler string
}

// CollectRoutes walks the router and returns its routes sorted by path,
// then method.
func CollectRoutes(router Router) []RouteInfo {
	var routes []RouteInfo
	_ = router.Walk(func(method, path string, handler http.Handler) error {
		routes = append(routes, RouteInfo{Method: method, Path: path, Handler: handlerName(handler)})
		return nil
	})

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	return routes
}

func handlerName(handler http.Handler) string {
	v := reflect.ValueOf(handler)
	if v.Kind() != reflect.Func {
		return fmt.Sprintf("%T", handler)
	}
	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil {
		return fmt.Sprintf("%T", handler)
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

// PrintRoutes writes routes as an aligned table.
func PrintRoutes(w io.Writer, routes []RouteInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tPATH\tHANDLER")
	for _, r := range routes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Method, r.Path, r.Handler)
	}
	return tw.Flush()
}
