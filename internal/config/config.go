// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package config holds the bridge's resolved configuration and the
// same "JSON file overrides flags" loader the teacher's client/server
// binaries use.
package config

import (
	"encoding/json"
	"os"
)

// Config mirrors spec.md §6's CLI surface plus the teacher's ambient
// conveniences (log redirection, quiet mode).
type Config struct {
	Port           string `json:"port"`
	Baud           int    `json:"baud"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	TCPPort        int    `json:"tcp_port"`
	UDPPort        int    `json:"udp_port"`
	ForkServer     bool   `json:"fork_server"`
	Log            string `json:"log"`
	Quiet          bool   `json:"quiet"`
}

// ParseJSONConfig overrides config's fields from the JSON file at path,
// the same shell-flags-then-JSON-override precedence client/main.go and
// server/main.go apply via their own parseJSONConfig.
func ParseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(config)
}
