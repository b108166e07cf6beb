// Command muxclient listens locally and forwards every accepted connection
// as a stream multiplexed onto one session with muxserver.
package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/xtaci/gomux/generic"
	"github.com/xtaci/gomux/internal/crypt"
	"github.com/xtaci/gomux/internal/kcptransport"
	"github.com/xtaci/gomux/internal/pipe"
	"github.com/xtaci/gomux/mux"
)

// VERSION is injected by build flags when packaging official binaries.
var VERSION = "SELFBUILD"

// defaultKey is the out-of-the-box pre-shared secret: fine for a quick local
// trial, never for anything that crosses an untrusted network.
const defaultKey = "it's a secret"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "muxclient"
	app.Usage = "forward local connections onto one multiplexed session"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "localaddr,l", Value: ":12948", Usage: "local listen address"},
		cli.StringFlag{Name: "remoteaddr,r", Value: "127.0.0.1:29900", Usage: "muxserver address"},
		cli.StringFlag{Name: "key", Value: defaultKey, Usage: "pre-shared secret between client and server", EnvVar: "GOMUX_KEY"},
		cli.StringFlag{Name: "crypt", Value: "aes-128", Usage: "aes-128, aes-192, aes-128-gcm, salsa20, blowfish, twofish, cast5, 3des, tea, xtea, xor, sm4, none (transport=kcp only, except none)"},
		cli.BoolFlag{Name: "nocomp", Usage: "disable snappy compression"},
		cli.StringFlag{Name: "transport", Value: "tcp", Usage: "tcp or kcp"},
		cli.StringFlag{Name: "mode", Value: "fast", Usage: "kcp profile: fast3, fast2, fast, normal"},
		cli.IntFlag{Name: "mtu", Value: 1350, Usage: "kcp maximum transmission unit"},
		cli.IntFlag{Name: "sndwnd", Value: 128, Usage: "kcp send window size"},
		cli.IntFlag{Name: "rcvwnd", Value: 512, Usage: "kcp receive window size"},
		cli.IntFlag{Name: "datashard,ds", Value: 10, Usage: "kcp reed-solomon datashard"},
		cli.IntFlag{Name: "parityshard,ps", Value: 3, Usage: "kcp reed-solomon parityshard"},
		cli.IntFlag{Name: "closewait", Value: 0, Usage: "seconds to wait before tearing down a connection after one side closes"},
		cli.StringFlag{Name: "log", Value: "", Usage: "log file, default stderr"},
		cli.BoolFlag{Name: "quiet", Usage: "suppress per-stream open/close logging"},
		cli.StringFlag{Name: "c", Value: "", Usage: "JSON config file, overrides flags"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(c *cli.Context) error {
	config := &Config{
		LocalAddr:   c.String("localaddr"),
		RemoteAddr:  c.String("remoteaddr"),
		Key:         c.String("key"),
		Crypt:       c.String("crypt"),
		NoComp:      c.Bool("nocomp"),
		Transport:   c.String("transport"),
		Mode:        c.String("mode"),
		MTU:         c.Int("mtu"),
		SndWnd:      c.Int("sndwnd"),
		RcvWnd:      c.Int("rcvwnd"),
		DataShard:   c.Int("datashard"),
		ParityShard: c.Int("parityshard"),
		CloseWait:   c.Int("closewait"),
		Log:         c.String("log"),
		Quiet:       c.Bool("quiet"),
	}

	if path := c.String("c"); path != "" {
		if err := parseJSONConfig(config, path); err != nil {
			return errors.Wrap(err, "parseJSONConfig")
		}
	}
	config.applyMode()

	if config.Key == defaultKey {
		color.Red("WARNING: using the default pre-shared key, set -key or GOMUX_KEY for a real deployment")
	}
	if config.Crypt == "none" && config.Transport != "kcp" {
		color.Red("WARNING: crypt=none, traffic on the TCP transport is sent in the clear")
	}

	if config.Log != "" {
		f, err := os.OpenFile(config.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return errors.Wrap(err, "open log file")
		}
		defer f.Close()
		log.SetOutput(f)
	}

	log.Println("version:", VERSION)
	log.Println("transport:", config.Transport)
	log.Println("remote address:", config.RemoteAddr)
	log.Println("encryption:", config.Crypt)
	log.Println("compression:", !config.NoComp)

	listener, err := listenLocal(config.LocalAddr)
	if err != nil {
		return errors.Wrap(err, "listenLocal")
	}
	log.Println("listening on:", listener.Addr())

	key := crypt.DeriveKey(config.Key)

	var current generic.Mux
	acquire := func() generic.Mux {
		for {
			if m, err := dialSession(config, key); err == nil {
				return m
			} else {
				log.Println("re-connecting:", err)
				time.Sleep(time.Second)
			}
		}
	}
	current = acquire()

	for {
		p1, err := listener.Accept()
		if err != nil {
			return errors.Wrap(err, "Accept")
		}

		if current.IsClosed() {
			current = acquire()
		}

		go handleClient(current, p1, config)
	}
}

func listenLocal(addr string) (net.Listener, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.Listen("unix", addr)
	}
	return net.Listen("tcp", addr)
}

// dialSession establishes the transport connection to muxserver, layers
// encryption and compression onto it, and starts a client-role session.
func dialSession(config *Config, key []byte) (generic.Mux, error) {
	var conn net.Conn
	var err error

	switch config.Transport {
	case "kcp":
		tuning := kcptransport.Tuning{
			NoDelay: config.NoDelay, Interval: config.Interval,
			Resend: config.Resend, NoCongestion: config.NoCongestion,
			MTU: config.MTU, SndWnd: config.SndWnd, RcvWnd: config.RcvWnd,
			DataShard: config.DataShard, ParityShard: config.ParityShard,
		}
		block, effective := crypt.SelectBlockCrypt(config.Crypt, key)
		config.Crypt = effective
		conn, err = kcptransport.Dial(config.RemoteAddr, block, tuning)
	default:
		conn, err = net.Dial("tcp", config.RemoteAddr)
		if err == nil && config.Crypt != "none" {
			conn, err = crypt.NewStreamConn(conn, key)
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "dial transport")
	}

	if !config.NoComp {
		conn = wrapSnappy(conn)
	}

	return generic.Wrap(mux.Client(conn)), nil
}

func handleClient(session generic.Mux, p1 net.Conn, config *Config) {
	logln := func(v ...any) {
		if !config.Quiet {
			log.Println(v...)
		}
	}

	defer p1.Close()
	p2, err := session.Open()
	if err != nil {
		logln("open stream:", err)
		return
	}
	defer p2.Close()

	logln("stream opened", "in:", p1.RemoteAddr(), "out:", fmt.Sprint(p2.RemoteAddr(), "(", p2.ID(), ")"))
	defer logln("stream closed", "in:", p1.RemoteAddr(), "out:", fmt.Sprint(p2.RemoteAddr(), "(", p2.ID(), ")"))

	errA, errB := pipe.Pipe(p1, p2, config.closeWait())
	if errA != nil {
		logln("pipe:", errA)
	}
	if errB != nil {
		logln("pipe:", errB)
	}
}
