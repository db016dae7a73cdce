// internal/app/system/offline/basepath.go
package offline

import (
	"net/url"
	"strings"
)

// WorkerFile is the script name the worker is installed under.
const WorkerFile = "sw.js"

// BasePath derives the directory the app is served from, using the path the
// worker script was installed at. It lets the app run under a subpath such as
// /shop/.
//
//	/shop/sw.js -> /shop/
//	/app/       -> /app/
//	""          -> /
//
// workerPath may be a bare path or a full URL. Anything that cannot be parsed
// resolves to "/".
func BasePath(workerPath string) string {
	u, err := url.Parse(workerPath)
	if err != nil {
		return "/"
	}
	p := u.Path
	if p == "" {
		return "/"
	}

	if strings.HasSuffix(p, "/"+WorkerFile) {
		return p[:strings.LastIndex(p, "/")+1]
	}
	if strings.HasSuffix(p, "/") {
		return p
	}

	dir := p[:strings.LastIndex(p, "/")+1]
	if dir == "" {
		return "/"
	}
	return dir
}
