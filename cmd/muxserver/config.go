package main

import (
	"encoding/json"
	"os"
	"time"
)

// Config holds every tunable muxserver exposes, either via CLI flags or a
// JSON file passed with -c (which overrides whatever the flags set).
type Config struct {
	Listen string `json:"listen"`
	Target string `json:"target"`
	Key    string `json:"key"`
	Crypt  string `json:"crypt"`
	NoComp bool   `json:"nocomp"`

	Transport string `json:"transport"`
	TCPRaw    bool   `json:"tcpraw"`

	Mode         string `json:"mode"`
	NoDelay      int    `json:"nodelay"`
	Interval     int    `json:"interval"`
	Resend       int    `json:"resend"`
	NoCongestion int    `json:"nc"`
	MTU          int    `json:"mtu"`
	SndWnd       int    `json:"sndwnd"`
	RcvWnd       int    `json:"rcvwnd"`
	DataShard    int    `json:"datashard"`
	ParityShard  int    `json:"parityshard"`

	CloseWait int    `json:"closewait"`
	Log       string `json:"log"`
	Quiet     bool   `json:"quiet"`
}

func (c *Config) closeWait() time.Duration {
	return time.Duration(c.CloseWait) * time.Second
}

func (c *Config) applyMode() {
	switch c.Mode {
	case "normal":
		c.NoDelay, c.Interval, c.Resend, c.NoCongestion = 0, 40, 2, 1
	case "fast":
		c.NoDelay, c.Interval, c.Resend, c.NoCongestion = 0, 30, 2, 1
	case "fast2":
		c.NoDelay, c.Interval, c.Resend, c.NoCongestion = 1, 20, 2, 1
	case "fast3":
		c.NoDelay, c.Interval, c.Resend, c.NoCongestion = 1, 10, 2, 1
	}
}

func parseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(config)
}
