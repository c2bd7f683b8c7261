package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path"

	"github.com/ChenXinhao/fcn/fcn"
	"github.com/ChenXinhao/fcn/web"
)

func main() {
	var dir, addr, assets string
	flag.StringVar(&dir, "dir", "result", "training output directory")
	flag.StringVar(&addr, "addr", ":8080", "listen address")
	flag.StringVar(&assets, "assets", "assets", "directory with html templates and static files")
	flag.Parse()

	r, err := web.NewServer(path.Join(dir, "log.csv"), assets)
	fcn.CheckErr(err)

	var handler http.Handler = r
	if user := os.Getenv("FCN_WEB_USER"); user != "" {
		mw := web.NewAuthMiddleware(user, os.Getenv("FCN_WEB_PASS"))
		handler = mw.Middleware(r)
	}
	fmt.Println("serving web page at http://localhost" + addr)
	fcn.CheckErr(http.ListenAndServe(addr, handler))
}
