package main

import (
	"bytes"
	"io"
)

var redacted = []byte("****")

// logRedacter masks secrets, such as the MQTT password, in log output
type logRedacter struct {
	out     io.Writer
	secrets []string
}

func (l logRedacter) Write(data []byte) (int, error) {
	n := len(data)
	for _, s := range l.secrets {
		if s != "" {
			data = bytes.ReplaceAll(data, []byte(s), redacted)
		}
	}
	if _, err := l.out.Write(data); err != nil {
		return 0, err
	}
	return n, nil
}
