package mailbox

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"bookingsync/internal/config"
	"bookingsync/internal/constants"
	"bookingsync/internal/logger"
)

type imapConn struct {
	cfg    config.MailboxConfig
	logger logger.Logger

	mu     sync.Mutex
	client *imapclient.Client
}

// NewIMAPClient connects to the configured IMAP account and selects the
// folder. The connection is re-established lazily after any command error.
func NewIMAPClient(cfg config.MailboxConfig, log logger.Logger) (Client, error) {
	c := &imapConn{cfg: cfg, logger: log}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *imapConn) connectLocked() error {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	var (
		cl  *imapclient.Client
		err error
	)
	if c.cfg.TLS {
		cl, err = imapclient.DialTLS(addr, nil)
	} else {
		cl, err = imapclient.Dial(addr)
	}
	if err != nil {
		return fmt.Errorf("failed to dial IMAP server %s: %w", addr, err)
	}

	cl.Timeout = constants.DefaultIMAPTimeout

	if err := cl.Login(c.cfg.Username, c.cfg.Password); err != nil {
		cl.Logout()
		return fmt.Errorf("IMAP login failed for %s: %w", c.cfg.Username, err)
	}

	if _, err := cl.Select(c.cfg.Folder, false); err != nil {
		cl.Logout()
		return fmt.Errorf("failed to select folder %s: %w", c.cfg.Folder, err)
	}

	c.client = cl
	c.logger.Infow("IMAP connected", "host", c.cfg.Host, "folder", c.cfg.Folder)
	return nil
}

func (c *imapConn) ensureLocked() error {
	if c.client != nil {
		return nil
	}
	return c.connectLocked()
}

// dropLocked discards the connection after a command error so the next call
// reconnects.
func (c *imapConn) dropLocked() {
	if c.client != nil {
		c.client.Logout()
		c.client = nil
	}
}

func (c *imapConn) SearchEnvelopes(ctx context.Context, q Query) ([]Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.ensureLocked(); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	if q.Subject != "" {
		criteria.Header.Add("Subject", q.Subject)
	}
	if !q.Since.IsZero() {
		criteria.Since = q.Since
	}
	if len(q.WithoutKeywords) > 0 {
		criteria.WithoutFlags = append(criteria.WithoutFlags, q.WithoutKeywords...)
	}
	if q.Unseen {
		criteria.WithoutFlags = append(criteria.WithoutFlags, imap.SeenFlag)
	}

	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("IMAP search failed: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	// UIDs come back ascending; keep the newest q.Max.
	if q.Max > 0 && len(uids) > q.Max {
		uids = uids[len(uids)-q.Max:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid}
	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.client.UidFetch(seqset, items, messages)
	}()

	envelopes := make([]Envelope, 0, len(uids))
	for msg := range messages {
		env := Envelope{
			UID:          msg.Uid,
			InternalDate: msg.InternalDate,
		}
		if msg.Envelope != nil {
			env.Subject = msg.Envelope.Subject
			if len(msg.Envelope.From) > 0 {
				env.From = msg.Envelope.From[0].Address()
			}
		}
		envelopes = append(envelopes, env)
	}

	if err := <-done; err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("IMAP fetch failed: %w", err)
	}

	// Most recent first.
	for i, j := 0, len(envelopes)-1; i < j; i, j = i+1, j-1 {
		envelopes[i], envelopes[j] = envelopes[j], envelopes[i]
	}

	return envelopes, nil
}

func (c *imapConn) FetchBody(ctx context.Context, uid uint32) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := c.ensureLocked(); err != nil {
		return "", err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.client.UidFetch(seqset, items, messages)
	}()

	var body string
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			<-done
			return "", fmt.Errorf("failed to read message body: %w", err)
		}
		body = string(data)
	}

	if err := <-done; err != nil {
		c.dropLocked()
		return "", fmt.Errorf("IMAP body fetch failed: %w", err)
	}

	return body, nil
}

func (c *imapConn) AddKeyword(ctx context.Context, uid uint32, keyword string) error {
	return c.storeFlags(ctx, uid, imap.AddFlags, keyword)
}

func (c *imapConn) RemoveKeyword(ctx context.Context, uid uint32, keyword string) error {
	return c.storeFlags(ctx, uid, imap.RemoveFlags, keyword)
}

func (c *imapConn) MarkSeen(ctx context.Context, uid uint32) error {
	return c.storeFlags(ctx, uid, imap.AddFlags, imap.SeenFlag)
}

func (c *imapConn) storeFlags(ctx context.Context, uid uint32, op imap.FlagsOp, flag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.ensureLocked(); err != nil {
		return err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	item := imap.FormatFlagsOp(op, true)
	if err := c.client.UidStore(seqset, item, []interface{}{flag}, nil); err != nil {
		c.dropLocked()
		return fmt.Errorf("IMAP store %v %s failed for uid %d: %w", op, flag, uid, err)
	}
	return nil
}

func (c *imapConn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.ensureLocked(); err != nil {
		return err
	}
	if err := c.client.Noop(); err != nil {
		c.dropLocked()
		return fmt.Errorf("IMAP noop failed: %w", err)
	}
	return nil
}

func (c *imapConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Logout()
	c.client = nil
	return err
}
