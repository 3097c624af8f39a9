package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	TypeLogin          = "login"
	TypeLoginAck       = "login.ack"
	TypeInspectRequest = "inspect.request"
	TypeInspectAnswer  = "inspect.answer"

	AckStatusAccepted = "accepted"
	AckStatusRejected = "rejected"

	maxEnvelopeBytes = 128 * 1024
)

var (
	ErrInvalidLogin          = errors.New("session: invalid login")
	ErrInvalidLoginAck       = errors.New("session: invalid login ack")
	ErrInvalidInspectRequest = errors.New("session: invalid inspect request")
	ErrInvalidInspectAnswer  = errors.New("session: invalid inspect answer")
	ErrEnvelopeTooLarge      = errors.New("session: envelope too large")
	ErrUnexpectedEnvelope    = errors.New("session: unexpected envelope type")
)

var digits = regexp.MustCompile(`^\d+$`)

// Login opens a gateway session for one game account.
type Login struct {
	Account  string `json:"account"`
	Password string `json:"password,omitempty"`
	AuthCode string `json:"auth_code,omitempty"`
	ClientID string `json:"client_id"`
}

func (l Login) Validate() error {
	if strings.TrimSpace(l.Account) == "" {
		return fmt.Errorf("%w: missing account", ErrInvalidLogin)
	}
	if strings.TrimSpace(l.ClientID) == "" {
		return fmt.Errorf("%w: missing client_id", ErrInvalidLogin)
	}
	return nil
}

// LoginAck is the gateway's handshake verdict.
type LoginAck struct {
	Status      string `json:"status"`
	Code        uint32 `json:"code"`
	Message     string `json:"message"`
	TimestampMS uint64 `json:"timestamp_ms"`
}

func (a LoginAck) Validate() error {
	status := strings.TrimSpace(a.Status)
	if status != AckStatusAccepted && status != AckStatusRejected {
		return fmt.Errorf("%w: invalid status", ErrInvalidLoginAck)
	}
	if a.TimestampMS == 0 {
		return fmt.Errorf("%w: missing timestamp_ms", ErrInvalidLoginAck)
	}
	return nil
}

// InspectRequest asks the game coordinator for one item. Exactly one of
// Owner or Market is set.
type InspectRequest struct {
	Owner   string `json:"s,omitempty"`
	Market  string `json:"m,omitempty"`
	AssetID string `json:"a"`
	ClassID string `json:"d"`
}

func (r InspectRequest) Validate() error {
	if (r.Owner == "") == (r.Market == "") {
		return fmt.Errorf("%w: exactly one of s/m required", ErrInvalidInspectRequest)
	}
	for name, v := range map[string]string{"s": r.Owner, "m": r.Market, "a": r.AssetID, "d": r.ClassID} {
		if v != "" && !digits.MatchString(v) {
			return fmt.Errorf("%w: %s is not decimal", ErrInvalidInspectRequest, name)
		}
	}
	if r.AssetID == "" || r.ClassID == "" {
		return fmt.Errorf("%w: missing a/d", ErrInvalidInspectRequest)
	}
	return nil
}

// InspectAnswer carries the item as hex of the item codec bytes (no framing).
type InspectAnswer struct {
	Item string `json:"item"`
}

func (a InspectAnswer) Validate() error {
	if strings.TrimSpace(a.Item) == "" {
		return fmt.Errorf("%w: missing item", ErrInvalidInspectAnswer)
	}
	return nil
}

// Envelope is one newline-delimited JSON message.
type Envelope struct {
	Type     string          `json:"type"`
	Login    *Login          `json:"login,omitempty"`
	LoginAck *LoginAck       `json:"login_ack,omitempty"`
	Request  *InspectRequest `json:"request,omitempty"`
	Answer   *InspectAnswer  `json:"answer,omitempty"`
}

// Validate checks that the body matching Type is present and well formed.
func (e Envelope) Validate() error {
	switch e.Type {
	case TypeLogin:
		if e.Login == nil {
			return fmt.Errorf("%w: missing body", ErrInvalidLogin)
		}
		return e.Login.Validate()
	case TypeLoginAck:
		if e.LoginAck == nil {
			return fmt.Errorf("%w: missing body", ErrInvalidLoginAck)
		}
		return e.LoginAck.Validate()
	case TypeInspectRequest:
		if e.Request == nil {
			return fmt.Errorf("%w: missing body", ErrInvalidInspectRequest)
		}
		return e.Request.Validate()
	case TypeInspectAnswer:
		if e.Answer == nil {
			return fmt.Errorf("%w: missing body", ErrInvalidInspectAnswer)
		}
		return e.Answer.Validate()
	default:
		return fmt.Errorf("%w: %q", ErrUnexpectedEnvelope, e.Type)
	}
}

func WriteLogin(w io.Writer, l Login) error {
	return WriteEnvelope(w, Envelope{Type: TypeLogin, Login: &l})
}

func WriteLoginAck(w io.Writer, a LoginAck) error {
	return WriteEnvelope(w, Envelope{Type: TypeLoginAck, LoginAck: &a})
}

func WriteInspectRequest(w io.Writer, r InspectRequest) error {
	return WriteEnvelope(w, Envelope{Type: TypeInspectRequest, Request: &r})
}

func WriteInspectAnswer(w io.Writer, a InspectAnswer) error {
	return WriteEnvelope(w, Envelope{Type: TypeInspectAnswer, Answer: &a})
}

// ReadLogin reads the next envelope and requires it to be a login.
func ReadLogin(r *bufio.Reader) (Login, error) {
	env, err := ReadEnvelope(r)
	if err != nil {
		return Login{}, err
	}
	if env.Type != TypeLogin {
		return Login{}, fmt.Errorf("%w: want %s got %s", ErrUnexpectedEnvelope, TypeLogin, env.Type)
	}
	return *env.Login, nil
}

// ReadLoginAck reads the next envelope and requires it to be a login.ack.
func ReadLoginAck(r *bufio.Reader) (LoginAck, error) {
	env, err := ReadEnvelope(r)
	if err != nil {
		return LoginAck{}, err
	}
	if env.Type != TypeLoginAck {
		return LoginAck{}, fmt.Errorf("%w: want %s got %s", ErrUnexpectedEnvelope, TypeLoginAck, env.Type)
	}
	return *env.LoginAck, nil
}

func WriteEnvelope(w io.Writer, env Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	_, err = w.Write(payload)
	return err
}

// ReadEnvelope reads and validates one envelope.
func ReadEnvelope(r *bufio.Reader) (Envelope, error) {
	line, err := readLine(r)
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Envelope{}, err
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// readLine reads through the next newline, failing once the line passes
// maxEnvelopeBytes.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(line)+len(chunk) > maxEnvelopeBytes {
			return nil, ErrEnvelopeTooLarge
		}
		line = append(line, chunk...)
		if err == nil {
			return line, nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
	}
}
