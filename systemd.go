package main

import (
	_ "embed"
	"io"
	"os"
	"path/filepath"
	"text/template"
)

//go:embed ringd.service
var ringdServiceEmbed string

type RingdServiceParams struct {
	BinaryPath string
	ConfigPath string
	User       string
}

func SystemdServiceFile(w io.Writer) error {
	tmpl, err := template.New("ringd.service").Parse(ringdServiceEmbed)
	if err != nil {
		return err
	}

	path, err := os.Executable()
	if err != nil {
		return err
	}

	params := RingdServiceParams{
		BinaryPath: path,
		ConfigPath: filepath.Join(filepath.Dir(path), "ringd.toml"),
		User:       GetEnvOr(os.Getenv, "USER", "ringd"),
	}

	return tmpl.Execute(w, params)
}
