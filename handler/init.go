package handler

import (
	"embed"
	"fmt"
	"html/template"
)

var (
	//go:embed template/*
	content embed.FS

	notificationTmpl *template.Template
)

func init() {
	b, err := content.ReadFile("template/notification.html")
	if err != nil {
		panic(fmt.Errorf("read template notification.html: %v", err))
	}

	notificationTmpl, err = template.New("notification").Parse(string(b))
	if err != nil {
		panic(fmt.Errorf("parse template notification.html: %v", err))
	}
}
