package handlers

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/dustin/go-humanize"
)

const pageName = "index.html"

//go:embed templates/*.html static/*
var assets embed.FS

var pageTemplate = template.Must(
	template.New(pageName).Funcs(template.FuncMap{
		"bytes": func(n int64) string {
			if n <= 0 {
				return ""
			}
			return humanize.Bytes(uint64(n))
		},
	}).ParseFS(assets, "templates/"+pageName),
)

func staticFS() http.FileSystem {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
