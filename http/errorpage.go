package http

import (
	"io"
	"net/http"
)

const defaultNotFoundHTML = `<html>
<head><title>404 Not Found</title></head>
<body>
<center><h1>404 Not Found</h1></center>
<hr><center>pagehaven</center>
</body>
</html>`

const defaultInternalErrorHTML = `<html>
<head><title>500 Internal Server Error</title></head>
<body>
<center><h1>500 Internal Server Error</h1></center>
<hr><center>pagehaven</center>
</body>
</html>`

func writeDefaultNotFound(w http.ResponseWriter) {
	writePage(w, http.StatusNotFound, defaultNotFoundHTML)
}

func writeDefaultInternalError(w http.ResponseWriter) {
	writePage(w, http.StatusInternalServerError, defaultInternalErrorHTML)
}

func writePage(w http.ResponseWriter, code int, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, page)
}
