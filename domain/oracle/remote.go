// Package oracle provides the point-prompted segmentation backends.
package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/soocke/maskbot-go/domain/annotate"
	"github.com/soocke/maskbot-go/domain/mask"
)

// ErrNotPrimed is returned by Query before a successful Prime and after a
// transport failure dropped the primed image. It matches annotate.ErrOracleReset.
var ErrNotPrimed = errors.Wrap(annotate.ErrOracleReset, "oracle not primed")

// Message is the JSON frame exchanged with a remote segmentation service.
// Requests are "prime" and "query"; replies are "primed", "mask" and "error".
type Message struct {
	Type    string   `json:"type"`
	Session string   `json:"session,omitempty"`
	Image   string   `json:"image,omitempty"` // base64 PNG
	Width   int      `json:"width,omitempty"`
	Height  int      `json:"height,omitempty"`
	Points  [][2]int `json:"points,omitempty"`
	Labels  []int    `json:"labels,omitempty"`
	Mask    string   `json:"mask,omitempty"` // base64 PNG, non-zero = inside
	Score   float64  `json:"score,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Remote talks to a stateful segmentation service over one websocket. The
// service keeps the image embedding between Prime and Query, so a dropped
// connection un-primes the oracle.
type Remote struct {
	url     string
	header  http.Header
	session string
	dialer  *websocket.Dialer
	logger  *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	primed bool
	w, h   int
}

// NewRemote returns an unconnected client; the first Prime dials.
func NewRemote(url, token, session string, logger *slog.Logger) *Remote {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Remote{
		url:     url,
		header:  header,
		session: session,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:  logger.With("oracle", "remote"),
	}
}

// Prime uploads img and waits for the service to acknowledge it.
func (r *Remote) Prime(ctx context.Context, img image.Image) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed)); err != nil {
		return errors.Wrap(err, "encode image")
	}
	b := img.Bounds()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primed = false
	reply, err := r.roundTrip(ctx, Message{
		Type:    "prime",
		Session: r.session,
		Image:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   b.Dx(),
		Height:  b.Dy(),
	})
	if err != nil {
		return err
	}
	if reply.Type != "primed" {
		return errors.Errorf("unexpected reply %q to prime", reply.Type)
	}
	r.primed = true
	r.w, r.h = b.Dx(), b.Dy()
	r.logger.Debug("primed", "width", r.w, "height", r.h, "bytes", buf.Len())
	return nil
}

// Query asks for the mask containing pt in the primed image.
func (r *Remote) Query(ctx context.Context, pt image.Point) (*mask.Mask, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.primed {
		return nil, 0, ErrNotPrimed
	}
	reply, err := r.roundTrip(ctx, Message{
		Type:    "query",
		Session: r.session,
		Points:  [][2]int{{pt.X, pt.Y}},
		Labels:  []int{1},
	})
	if err != nil {
		if !r.primed {
			return nil, 0, errors.Wrapf(ErrNotPrimed, "query: %v", err)
		}
		return nil, 0, err
	}
	if reply.Type != "mask" {
		return nil, 0, errors.Errorf("unexpected reply %q to query", reply.Type)
	}
	raw, err := base64.StdEncoding.DecodeString(reply.Mask)
	if err != nil {
		return nil, 0, errors.Wrap(err, "decode mask payload")
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, errors.Wrap(err, "decode mask png")
	}
	m := mask.FromImage(img)
	if m.W != r.w || m.H != r.h {
		return nil, 0, errors.Wrapf(mask.ErrShapeMismatch, "got %dx%d, want %dx%d", m.W, m.H, r.w, r.h)
	}
	return m, reply.Score, nil
}

// Close drops the connection.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropLocked()
}

func (r *Remote) dropLocked() error {
	r.primed = false
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

// roundTrip sends one request and reads one reply. Any transport failure drops
// the connection so the next Prime redials. Callers hold mu.
func (r *Remote) roundTrip(ctx context.Context, req Message) (Message, error) {
	if r.conn == nil {
		conn, _, err := r.dialer.DialContext(ctx, r.url, r.header)
		if err != nil {
			return Message{}, errors.Wrapf(err, "dial %s", r.url)
		}
		r.conn = conn
		r.logger.Info("connected", "url", r.url)
	}
	conn := r.conn
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteJSON(req); err != nil {
		_ = r.dropLocked()
		return Message{}, errors.Wrapf(err, "send %s", req.Type)
	}
	var reply Message
	if err := conn.ReadJSON(&reply); err != nil {
		_ = r.dropLocked()
		if ctx.Err() != nil {
			return Message{}, errors.Wrapf(ctx.Err(), "await %s", req.Type)
		}
		return Message{}, errors.Wrapf(err, "await %s", req.Type)
	}
	if reply.Type == "error" {
		return Message{}, errors.Errorf("service: %s", reply.Error)
	}
	return reply, nil
}
