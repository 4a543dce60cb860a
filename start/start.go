// Copyright 2026 The avicap Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"text/template"

	"avicap"
)

func main() {
	if len(os.Args) == 3 && os.Args[1] == "init" {
		path, err := genEnv(os.Args[2])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("wrote", path)
		return
	}
	if err := avicap.Run(); err != nil {
		log.Fatal(err)
	}
}

const envTemplate = `# Directory for recordings and the log database.
storageDir: {{ .HomeDir }}/storage
homeDir: {{ .HomeDir }}

logDB: true
statusInterval: 10
# Megabytes.
minFreeSpace: 500

capture:
  # rle8 or yv12.
  codec: rle8
  frameRate: 50
  sampleRate: 48000
  ntsc: false
  # Zero uses the source rate.
  clockFrequency: 0
  # Bytes, zero means just under 2 GiB which is also the limit.
  maxFileSize: 0
  volume: 0.7

display:
  brightness: 0
  contrast: 1
  gamma: 1
  hueShift: 0
  # Negative for monochrome.
  saturation: 1

source:
  # Absolute path to a sample dump, the generator is used if empty.
  dump: ""
  # bars, solid, gradient or ramp.
  pattern: bars
  color: 0
  toneHz: 1000
  # Seconds, zero runs until stopped.
  duration: 0
`

var errEnvExist = errors.New("env.yaml already exists")

// genEnv writes a default env.yaml to configDir and returns its path.
// The home directory is the parent of configDir.
func genEnv(configDir string) (string, error) {
	configDir, err := filepath.Abs(configDir)
	if err != nil {
		return "", fmt.Errorf("could not get absolute path of config dir: %w", err)
	}

	path := filepath.Join(configDir, "env.yaml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %v", errEnvExist, path)
	}

	t := template.Must(template.New("env").Parse(envTemplate))

	var b bytes.Buffer
	data := struct{ HomeDir string }{filepath.Dir(configDir)}
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("could not create config dir: %w", err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0o600); err != nil {
		return "", fmt.Errorf("could not write env.yaml: %w", err)
	}
	return path, nil
}
