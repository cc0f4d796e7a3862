package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

// MaxVerifyBodyBytes caps verification request bodies. The cap is enforced
// before any parsing so an oversized body is rejected without being decoded.
const MaxVerifyBodyBytes = 262144

var errBodyTooLarge = errors.New("request body exceeds size limit")

// readStrictBody reads and validates a JSON request body: size cap first,
// then UTF-8, then strict JSON with duplicate object keys and trailing data
// rejected.
func readStrictBody(c *gin.Context) ([]byte, error) {
	if c.Request.ContentLength > MaxVerifyBodyBytes {
		return nil, errBodyTooLarge
	}
	limited := io.LimitReader(c.Request.Body, MaxVerifyBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(body) > MaxVerifyBodyBytes {
		return nil, errBodyTooLarge
	}
	if !utf8.Valid(body) {
		return nil, errors.New("request body is not valid UTF-8")
	}
	if err := checkStrictJSON(body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkStrictJSON walks the token stream rejecting duplicate object keys
// and data after the top-level value.
func checkStrictJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	// The decoder enforces JSON grammar; this walk only tracks object key
	// sets per nesting level and end-of-input.
	type frame struct {
		object bool
		keys   map[string]bool
		isKey  bool
	}
	var stack []*frame

	valueDone := func() error {
		if len(stack) > 0 && stack[len(stack)-1].object {
			stack[len(stack)-1].isKey = true
		}
		if len(stack) == 0 && dec.More() {
			return errors.New("invalid JSON: trailing data")
		}
		return nil
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}

		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{':
				stack = append(stack, &frame{object: true, keys: map[string]bool{}, isKey: true})
			case '[':
				stack = append(stack, &frame{})
			case '}', ']':
				stack = stack[:len(stack)-1]
				if err := valueDone(); err != nil {
					return err
				}
			}
			continue
		}

		if len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.object && top.isKey {
				key := tok.(string)
				if top.keys[key] {
					return fmt.Errorf("invalid JSON: duplicate object key %q", key)
				}
				top.keys[key] = true
				top.isKey = false
				continue
			}
		}

		if err := valueDone(); err != nil {
			return err
		}
	}
	return nil
}

// readVerifyBody is readStrictBody with the error already written: 413 for
// oversize, 400 for everything else malformed.
func (s *Server) readVerifyBody(c *gin.Context) ([]byte, bool) {
	body, err := readStrictBody(c)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeErrorCode(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error())
		} else {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", err.Error())
		}
		return nil, false
	}
	return body, true
}
