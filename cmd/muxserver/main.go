// Command muxserver accepts multiplexed sessions from muxclient and
// forwards each stream to a fixed upstream target.
package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	kcp "github.com/xtaci/kcp-go/v5"

	"github.com/xtaci/gomux/generic"
	"github.com/xtaci/gomux/internal/crypt"
	"github.com/xtaci/gomux/internal/kcptransport"
	"github.com/xtaci/gomux/internal/multiport"
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
	app.Name = "muxserver"
	app.Usage = "accept multiplexed sessions and forward streams to a target"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "listen,l", Value: ":29900", Usage: `listen address, eg "IP:29900" or "IP:minport-maxport"`},
		cli.StringFlag{Name: "target,t", Value: "127.0.0.1:12948", Usage: "upstream target, host:port or unix socket path"},
		cli.StringFlag{Name: "key", Value: defaultKey, Usage: "pre-shared secret between client and server", EnvVar: "GOMUX_KEY"},
		cli.StringFlag{Name: "crypt", Value: "aes-128", Usage: "aes-128, aes-192, aes-128-gcm, salsa20, blowfish, twofish, cast5, 3des, tea, xtea, xor, sm4, none"},
		cli.BoolFlag{Name: "nocomp", Usage: "disable snappy compression"},
		cli.StringFlag{Name: "transport", Value: "tcp", Usage: "tcp or kcp"},
		cli.BoolFlag{Name: "tcpraw", Usage: "emulate a TCP flow for the kcp transport (linux)"},
		cli.StringFlag{Name: "mode", Value: "fast", Usage: "kcp profile: fast3, fast2, fast, normal"},
		cli.IntFlag{Name: "mtu", Value: 1350, Usage: "kcp maximum transmission unit"},
		cli.IntFlag{Name: "sndwnd", Value: 1024, Usage: "kcp send window size"},
		cli.IntFlag{Name: "rcvwnd", Value: 1024, Usage: "kcp receive window size"},
		cli.IntFlag{Name: "datashard,ds", Value: 10, Usage: "kcp reed-solomon datashard"},
		cli.IntFlag{Name: "parityshard,ps", Value: 3, Usage: "kcp reed-solomon parityshard"},
		cli.IntFlag{Name: "closewait", Value: 30, Usage: "seconds to wait before tearing down a connection after one side closes"},
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
		Listen:      c.String("listen"),
		Target:      c.String("target"),
		Key:         c.String("key"),
		Crypt:       c.String("crypt"),
		NoComp:      c.Bool("nocomp"),
		Transport:   c.String("transport"),
		TCPRaw:      c.Bool("tcpraw"),
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
	log.Println("listening on:", config.Listen)
	log.Println("target:", config.Target)
	log.Println("encryption:", config.Crypt)
	log.Println("compression:", !config.NoComp)

	key := crypt.DeriveKey(config.Key)

	mp, err := multiport.Parse(config.Listen)
	if err != nil {
		return errors.Wrap(err, "parse listen address")
	}

	var wg sync.WaitGroup
	for port := mp.MinPort; port <= mp.MaxPort; port++ {
		addr := fmt.Sprintf("%v:%v", mp.Host, port)
		lis, err := newListener(addr, config, key)
		if err != nil {
			return errors.Wrap(err, "listen")
		}
		log.Println("listening on:", addr)

		wg.Add(1)
		go func() {
			defer wg.Done()
			acceptLoop(lis, config, key)
		}()
	}
	wg.Wait()
	return nil
}

// newListener builds the raw net.Listener for one port, per the configured
// transport.
func newListener(addr string, config *Config, key []byte) (net.Listener, error) {
	if config.Transport != "kcp" {
		return net.Listen("tcp", addr)
	}

	tuning := kcptransport.Tuning{
		NoDelay: config.NoDelay, Interval: config.Interval,
		Resend: config.Resend, NoCongestion: config.NoCongestion,
		MTU: config.MTU, SndWnd: config.SndWnd, RcvWnd: config.RcvWnd,
		DataShard: config.DataShard, ParityShard: config.ParityShard,
	}
	block, effective := crypt.SelectBlockCrypt(config.Crypt, key)
	config.Crypt = effective

	var lis *kcp.Listener
	var err error
	if config.TCPRaw {
		lis, err = kcptransport.ListenTCPEmulated(addr, block, tuning)
	} else {
		lis, err = kcptransport.Listen(addr, block, tuning)
	}
	if err != nil {
		return nil, err
	}
	return tunedListener{lis, tuning}, nil
}

type tunedListener struct {
	*kcp.Listener
	tuning kcptransport.Tuning
}

func (tl tunedListener) Accept() (net.Conn, error) {
	return kcptransport.AcceptTuned(tl.Listener, tl.tuning)
}

// acceptLoop accepts raw transport connections on lis and hands each to a
// session handler.
func acceptLoop(lis net.Listener, config *Config, key []byte) {
	for {
		conn, err := lis.Accept()
		if err != nil {
			log.Printf("%+v", err)
			return
		}
		log.Println("remote address:", conn.RemoteAddr())

		if config.Transport != "kcp" && config.Crypt != "none" {
			wrapped, err := crypt.NewStreamConn(conn, key)
			if err != nil {
				log.Println("crypt:", err)
				conn.Close()
				continue
			}
			conn = wrapped
		}
		if !config.NoComp {
			conn = wrapSnappy(conn)
		}

		go handleSession(mux.Server(conn), config)
	}
}

// handleSession accepts every stream multiplexed onto session and forwards
// it to the configured upstream target.
func handleSession(m *mux.Multiplexer, config *Config) {
	session := generic.Wrap(m)
	defer session.Close()

	targetNetwork := "tcp"
	if _, _, err := net.SplitHostPort(config.Target); err != nil {
		targetNetwork = "unix"
	}

	for {
		p1, err := session.Accept()
		if err != nil {
			log.Println(err)
			return
		}

		go func(p1 generic.Stream) {
			p2, err := net.Dial(targetNetwork, config.Target)
			if err != nil {
				log.Println(err)
				p1.Close()
				return
			}
			handleClient(p1, p2, config)
		}(p1)
	}
}

func handleClient(p1 generic.Stream, p2 net.Conn, config *Config) {
	logln := func(v ...any) {
		if !config.Quiet {
			log.Println(v...)
		}
	}

	defer p1.Close()
	defer p2.Close()

	logln("stream opened", "in:", fmt.Sprint(p1.RemoteAddr(), "(", p1.ID(), ")"), "out:", p2.RemoteAddr())
	defer logln("stream closed", "in:", fmt.Sprint(p1.RemoteAddr(), "(", p1.ID(), ")"), "out:", p2.RemoteAddr())

	errA, errB := pipe.Pipe(p1, p2, config.closeWait())
	if errA != nil {
		logln("pipe:", errA)
	}
	if errB != nil {
		logln("pipe:", errB)
	}
}
