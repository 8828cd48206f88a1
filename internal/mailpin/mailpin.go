// Package mailpin reads LinkedIn login verification codes from an IMAP
// mailbox.
package mailpin

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"
)

// ErrNoPIN means no verification email arrived before the wait expired.
var ErrNoPIN = errors.New("no verification pin email arrived")

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	Wait     time.Duration
	Interval time.Duration
	MaxScan  int // newest messages inspected per poll
}

type message struct {
	uid     imap.UID
	from    string
	subject string
	date    time.Time
	raw     []byte
}

type Reader struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Reader {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Wait <= 0 {
		cfg.Wait = time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MaxScan <= 0 {
		cfg.MaxScan = 20
	}
	return &Reader{cfg: cfg, logger: logger.Named("mailpin")}
}

// LatestPIN polls the mailbox until a LinkedIn message received after since
// carries a code, or the configured wait runs out.
func (r *Reader) LatestPIN(ctx context.Context, since time.Time) (string, error) {
	deadline := time.Now().Add(r.cfg.Wait)
	for {
		pin, err := r.scan(ctx, since)
		switch {
		case err != nil:
			r.logger.Warn("mailbox scan failed", zap.Error(err))
		case pin != "":
			r.logger.Info("verification pin found")
			return pin, nil
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return "", ErrNoPIN
		}
		if wait > r.cfg.Interval {
			wait = r.cfg.Interval
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
}

func (r *Reader) scan(ctx context.Context, since time.Time) (string, error) {
	c, err := r.dial(ctx)
	if err != nil {
		return "", err
	}
	defer r.logout(c)

	if _, err := c.Select(r.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return "", fmt.Errorf("imap select %s: %w", r.cfg.Mailbox, err)
	}
	msgs, err := r.fetchSince(ctx, c, since)
	if err != nil {
		return "", err
	}
	return pickPIN(msgs, since), nil
}

// pickPIN returns the code from the newest LinkedIn message at or after since.
func pickPIN(msgs []message, since time.Time) string {
	msgs = append([]message(nil), msgs...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].date.After(msgs[j].date) })
	// allow for clock skew between us and the mail server
	cutoff := since.Add(-time.Minute)
	for _, m := range msgs {
		if !m.date.IsZero() && m.date.Before(cutoff) {
			continue
		}
		if !fromLinkedIn(m.from) {
			continue
		}
		if pin, ok := ExtractPIN(m.subject, m.raw); ok {
			return pin
		}
	}
	return ""
}

func (r *Reader) dial(ctx context.Context) (*imapclient.Client, error) {
	if r.cfg.Host == "" {
		return nil, errors.New("imap host is required")
	}
	if r.cfg.Username == "" || r.cfg.Password == "" {
		return nil, errors.New("imap username/password is required")
	}
	addr := net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port))
	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: r.cfg.Host},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	if err := c.Login(r.cfg.Username, r.cfg.Password).Wait(); err != nil {
		stop()
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

func (r *Reader) fetchSince(ctx context.Context, c *imapclient.Client, since time.Time) ([]message, error) {
	// SINCE has day granularity; exact filtering happens in pickPIN
	data, err := c.UIDSearch(&imap.SearchCriteria{Since: since.AddDate(0, 0, -1)}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search: %w", err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if len(uids) > r.cfg.MaxScan {
		uids = uids[len(uids)-r.cfg.MaxScan:]
	}

	bodyAll := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	cmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = cmd.Close() }()

	out := make([]message, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		md := cmd.Next()
		if md == nil {
			break
		}
		buf, err := md.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}
		m := message{uid: buf.UID, date: buf.InternalDate}
		if buf.Envelope != nil {
			m.subject = buf.Envelope.Subject
			for _, a := range buf.Envelope.From {
				m.from += a.Addr() + " " + a.Name + " "
			}
			if m.date.IsZero() {
				m.date = buf.Envelope.Date
			}
		}
		m.raw = buf.FindBodySection(bodyAll)
		out = append(out, m)
	}
	if err := cmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

func (r *Reader) logout(c *imapclient.Client) {
	if err := c.Logout().Wait(); err != nil {
		r.logger.Debug("imap logout", zap.Error(err))
	}
	_ = c.Close()
}
