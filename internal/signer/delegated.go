package signer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/zeroxbob/pinstr/internal/errs"
	"github.com/zeroxbob/pinstr/internal/model"
)

// RequestType names the operations a delegated signer supports.
type RequestType string

const (
	RequestGetIdentity RequestType = "get_identity"
	RequestSignEvent   RequestType = "sign_event"
)

// Request is one correlated call to an out-of-process signer.
type Request struct {
	ID      string
	Type    RequestType
	Payload []byte
}

// Response carries the signer's result and the app that produced it.
type Response struct {
	Result         []byte
	OriginatingApp string
}

// Transport is the platform channel to an external signer (an Amber-style
// intent bridge or a bunker connection). Implementations return
// errs.ErrUserRejected when the user declines, and honor ctx deadlines.
type Transport interface {
	Request(ctx context.Context, req Request) (Response, error)
}

// Delegated hands drafts to an external signer and awaits the correlated
// response. This path is asynchronous: it can fail with errs.ErrUserRejected
// or a context timeout, both terminal for the attempt.
type Delegated struct {
	transport Transport
}

// NewDelegated wraps a transport.
func NewDelegated(transport Transport) *Delegated {
	return &Delegated{transport: transport}
}

// unsignedDraft is the payload shipped to the external signer.
type unsignedDraft struct {
	Kind      int        `json:"kind"`
	Content   string     `json:"content"`
	Tags      [][]string `json:"tags"`
	CreatedAt int64      `json:"created_at"`
}

// Sign implements Signer.
func (d *Delegated) Sign(ctx context.Context, ev *model.Event) error {
	payload, err := json.Marshal(unsignedDraft{
		Kind:      ev.Kind,
		Content:   ev.Content,
		Tags:      ev.Tags,
		CreatedAt: ev.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("delegated sign: %w", err)
	}
	resp, err := d.request(ctx, RequestSignEvent, payload)
	if err != nil {
		return err
	}
	var signed model.Event
	if err := json.Unmarshal(resp.Result, &signed); err != nil {
		return fmt.Errorf("delegated sign: bad response: %w", err)
	}
	if signed.ID == "" || signed.Sig == "" {
		return fmt.Errorf("delegated sign: response missing id or sig")
	}
	// The external signer is trusted with the key, not with the draft: the
	// response must carry exactly what was submitted, under a valid signature.
	if signed.Kind != ev.Kind || signed.Content != ev.Content || !tagsEqual(signed.Tags, ev.Tags) {
		return fmt.Errorf("delegated sign: response altered the draft")
	}
	if ev.CreatedAt != 0 && signed.CreatedAt != ev.CreatedAt {
		return fmt.Errorf("delegated sign: response altered the draft")
	}
	wantID, err := signed.ComputeID()
	if err != nil {
		return err
	}
	if signed.ID != wantID || !signed.VerifySignature() {
		return fmt.Errorf("delegated sign: response signature invalid")
	}
	*ev = signed
	return nil
}

func tagsEqual(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

// PublicKey implements Signer.
func (d *Delegated) PublicKey(ctx context.Context) (string, error) {
	resp, err := d.request(ctx, RequestGetIdentity, nil)
	if err != nil {
		return "", err
	}
	return string(resp.Result), nil
}

func (d *Delegated) request(ctx context.Context, typ RequestType, payload []byte) (Response, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return Response{}, err
	}
	resp, err := d.transport.Request(ctx, Request{ID: id.String(), Type: typ, Payload: payload})
	if err != nil {
		if errors.Is(err, errs.ErrUserRejected) {
			return Response{}, err
		}
		return Response{}, fmt.Errorf("delegated signer: %w", err)
	}
	return resp, nil
}
