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

package main

import (
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"log"

	"github.com/Synkar/rosserial/internal/bridge"
	"github.com/Synkar/rosserial/internal/config"
	"github.com/Synkar/rosserial/internal/listener"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "rosserial-bridge"
	myApp.Usage = "host-side bridge between a rosserial device and the middleware"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "port",
			Value: "",
			Usage: "serial device path, e.g. /dev/ttyUSB0; leave empty to skip the serial listener",
		},
		cli.IntFlag{
			Name:  "baud",
			Value: 57600,
			Usage: "serial baud rate",
		},
		cli.IntFlag{
			Name:  "timeout_seconds",
			Value: 5,
			Usage: "per-session link timeout in seconds: sync is declared lost after 3x this without a time sync from the device",
		},
		cli.IntFlag{
			Name:  "tcp_port",
			Value: 0,
			Usage: "TCP port to accept devices on; 0 disables the TCP listener",
		},
		cli.IntFlag{
			Name:  "udp_port",
			Value: 0,
			Usage: "UDP port to accept devices on; 0 disables the UDP listener",
		},
		cli.BoolFlag{
			Name:  "fork_server",
			Usage: "accepted for compatibility with the original server; every connection always runs in its own goroutine",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "specify a log file to output, default goes to stderr",
		},
		cli.BoolFlag{
			Name:  "quiet",
			Usage: "recorded in the config and startup banner only; per-connection accept/detect log lines are always printed",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "",
			Usage: "config from json file, which will override the command from shell",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		cfg := config.Config{}
		cfg.Port = c.String("port")
		cfg.Baud = c.Int("baud")
		cfg.TimeoutSeconds = c.Int("timeout_seconds")
		cfg.TCPPort = c.Int("tcp_port")
		cfg.UDPPort = c.Int("udp_port")
		cfg.ForkServer = c.Bool("fork_server")
		cfg.Log = c.String("log")
		cfg.Quiet = c.Bool("quiet")

		if c.String("c") != "" {
			if err := config.ParseJSONConfig(&cfg, c.String("c")); err != nil {
				log.Printf("%+v\n", err)
				os.Exit(-1)
			}
		}

		if cfg.Log != "" {
			f, err := os.OpenFile(cfg.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			if err != nil {
				log.Printf("%+v\n", err)
				os.Exit(-1)
			}
			defer f.Close()
			log.SetOutput(f)
		}

		log.Println("version:", VERSION)
		log.Println("port:", cfg.Port)
		log.Println("baud:", cfg.Baud)
		log.Println("timeout_seconds:", cfg.TimeoutSeconds)
		log.Println("tcp_port:", cfg.TCPPort)
		log.Println("udp_port:", cfg.UDPPort)
		log.Println("fork_server:", cfg.ForkServer)
		log.Println("quiet:", cfg.Quiet)

		if cfg.Port == "" && cfg.TCPPort == 0 && cfg.UDPPort == 0 {
			color.Red("no listener configured: at least one of -port, -tcp_port, -udp_port must be set")
			os.Exit(-1)
		}

		if cfg.ForkServer {
			color.Yellow("fork_server Warning: accepted for compatibility but ignored, every connection always runs in its own goroutine")
		}

		sessionCfg := bridge.Config{LinkTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
		deps := listener.Collaborators{
			Middleware: unwiredMiddleware{},
			Types:      unwiredTypeRegistry{},
			LogSink:    stdlibLogSink{},
			DiagSink:   stdlibDiagnosticsSink{},
		}

		shutdown := make(chan struct{})
		notifyShutdownOnSignal(shutdown)

		var wg sync.WaitGroup
		run := func(name string, fn func() error) {
			defer wg.Done()
			if err := fn(); err != nil {
				log.Printf("listener %s exited: %+v", name, err)
			}
		}

		if cfg.Port != "" {
			wg.Add(1)
			go run("serial", func() error {
				return listener.RunSerial(cfg.Port, cfg.Baud, sessionCfg, deps, shutdown)
			})
		}
		if cfg.TCPPort != 0 {
			wg.Add(1)
			go run("tcp", func() error {
				return listener.RunTCP(cfg.TCPPort, sessionCfg, deps, cfg.ForkServer, shutdown)
			})
		}
		if cfg.UDPPort != 0 {
			wg.Add(1)
			go run("udp", func() error {
				return listener.RunUDP(cfg.UDPPort, sessionCfg, deps, shutdown)
			})
		}

		wg.Wait()
		return nil
	}
	myApp.Run(os.Args)
}
