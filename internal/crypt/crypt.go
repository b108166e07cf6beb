// Package crypt derives a shared session key from a pre-shared secret and
// wraps a transport in the cipher the operator selected. Stream ciphers wrap
// a net.Conn directly (the default TCP transport); the packet-cipher table
// exists for the optional KCP transport, which needs a kcp.BlockCrypt
// instead of an io.Reader/io.Writer wrapper.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"log"
	"net"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"
	"golang.org/x/crypto/pbkdf2"
)

// salt is fixed: the pre-shared secret itself is the only real entropy, and
// keeping the salt constant lets both peers derive the same key without a
// handshake.
const salt = "gomux"

// DeriveKey stretches a pre-shared secret into a 32-byte key via PBKDF2.
func DeriveKey(secret string) []byte {
	return pbkdf2.Key([]byte(secret), []byte(salt), 4096, 32, sha1.New)
}

// StreamConn wraps a net.Conn in independent AES-CTR keystreams for the read
// and write directions, so that writer and reader progress don't contend on
// one shared cipher.Stream.
type StreamConn struct {
	net.Conn
	enc cipher.Stream
	dec cipher.Stream
}

// NewStreamConn builds a StreamConn from a 32-byte key. The two directions
// are keyed identically but seeded with distinct IVs (derived from the key
// itself) so client->server and server->client keystreams never collide.
func NewStreamConn(conn net.Conn, key []byte) (*StreamConn, error) {
	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, err
	}

	encIV := directionIV(key, "enc")
	decIV := directionIV(key, "dec")

	return &StreamConn{
		Conn: conn,
		enc:  cipher.NewCTR(block, encIV),
		dec:  cipher.NewCTR(block, decIV),
	}, nil
}

func directionIV(key []byte, tag string) []byte {
	h := sha1.New()
	h.Write(key)
	h.Write([]byte(tag))
	return h.Sum(nil)[:aes.BlockSize]
}

func (c *StreamConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.dec.XORKeyStream(p[:n], p[:n])
	}
	return n, err
}

func (c *StreamConn) Write(p []byte) (int, error) {
	out := make([]byte, len(p))
	c.enc.XORKeyStream(out, p)
	return c.Conn.Write(out)
}

func (c *StreamConn) SetDeadline(t time.Time) error      { return c.Conn.SetDeadline(t) }
func (c *StreamConn) SetReadDeadline(t time.Time) error  { return c.Conn.SetReadDeadline(t) }
func (c *StreamConn) SetWriteDeadline(t time.Time) error { return c.Conn.SetWriteDeadline(t) }

// blockCryptMethod maps a cipher name to its kcp.BlockCrypt constructor and
// required key size (0 means the full derived key is used).
type blockCryptMethod struct {
	keySize int
	build   func(key []byte) (kcp.BlockCrypt, error)
}

var blockCryptMethods = map[string]blockCryptMethod{
	"none":        {0, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewNoneBlockCrypt(key) }},
	"sm4":         {16, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewSM4BlockCrypt(key) }},
	"tea":         {16, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewTEABlockCrypt(key) }},
	"xor":         {0, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewSimpleXORBlockCrypt(key) }},
	"aes-128":     {16, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewAESBlockCrypt(key) }},
	"aes-192":     {24, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewAESBlockCrypt(key) }},
	"blowfish":    {0, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewBlowfishBlockCrypt(key) }},
	"twofish":     {0, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewTwofishBlockCrypt(key) }},
	"cast5":       {16, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewCast5BlockCrypt(key) }},
	"3des":        {24, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewTripleDESBlockCrypt(key) }},
	"xtea":        {16, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewXTEABlockCrypt(key) }},
	"salsa20":     {0, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewSalsa20BlockCrypt(key) }},
	"aes-128-gcm": {16, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewAESGCMCrypt(key) }},
}

// SelectBlockCrypt picks the kcp.BlockCrypt for the KCP transport, falling
// back to AES-256 on an unknown or failing method name. It returns the
// effective method name too, so callers can log what was actually used.
func SelectBlockCrypt(method string, key []byte) (kcp.BlockCrypt, string) {
	if m, ok := blockCryptMethods[method]; ok {
		k := key
		if m.keySize > 0 && len(key) >= m.keySize {
			k = key[:m.keySize]
		}
		block, err := m.build(k)
		if err == nil {
			return block, method
		}
		log.Printf("crypt: %s cipher failed (%v), falling back to aes", method, err)
	}
	block, err := kcp.NewAESBlockCrypt(key)
	if err != nil {
		log.Printf("crypt: default aes cipher failed: %v", err)
	}
	return block, "aes"
}
