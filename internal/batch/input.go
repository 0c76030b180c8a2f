package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/MikeSquared-Agency/triage/internal/ticket"
)

// record accepts the helpdesk export shape as well as the short field names
// used by older exports (id, text, user_id).
type record struct {
	TicketID   string `json:"ticket_id"`
	ID         string `json:"id"`
	Message    string `json:"message"`
	Text       string `json:"text"`
	CustomerID string `json:"customer_id"`
	UserID     string `json:"user_id"`
	VIPLevel   string `json:"vip_level"`
}

func (r record) ticket(row int) ticket.Ticket {
	t := ticket.Ticket{
		ID:         firstNonEmpty(r.TicketID, r.ID),
		Message:    firstNonEmpty(r.Message, r.Text),
		CustomerID: firstNonEmpty(r.CustomerID, r.UserID),
		VIPLevel:   ticket.ParseVIPLevel(r.VIPLevel),
	}
	if t.ID == "" {
		t.ID = fmt.Sprintf("row-%d", row)
	}
	return t
}

// ReadTickets reads a JSON array of tickets or one ticket per line (JSONL).
// Tickets without an id are named after their 1-based row so reruns resume
// against the same ids.
func ReadTickets(r io.Reader) ([]ticket.Ticket, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if first == '[' {
		var recs []record
		if err := json.NewDecoder(br).Decode(&recs); err != nil {
			return nil, fmt.Errorf("parse ticket array: %w", err)
		}
		out := make([]ticket.Ticket, 0, len(recs))
		for i, rec := range recs {
			out = append(out, rec.ticket(i+1))
		}
		return out, nil
	}

	var out []ticket.Ticket
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	row := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		row++
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parse ticket row %d: %w", row, err)
		}
		out = append(out, rec.ticket(row))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return out, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
