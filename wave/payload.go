package wave

import (
	"strconv"
	"strings"
	"time"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// parseDayStart parses a dd.mm.yyyy date string and returns midnight UTC of
// that calendar day.
func parseDayStart(s string) (time.Time, error) {
	t, err := parseCalendarDay(s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// parseDayEnd parses a dd.mm.yyyy date string and returns the last instant
// (23:59:59.999999999) of that calendar day, UTC.
func parseDayEnd(s string) (time.Time, error) {
	t, err := parseCalendarDay(s)
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(24*time.Hour - time.Nanosecond), nil
}

func parseCalendarDay(s string) (time.Time, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return time.Time{}, errctx.New(errctx.CodeParse, "invalid date %q, want dd.mm.yyyy", s)
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, errctx.New(errctx.CodeParse, "invalid date %q, want dd.mm.yyyy", s)
	}
	if year < 1970 {
		return time.Time{}, errctx.New(errctx.CodeRange, "date %q has year before 1970", s)
	}
	if month < 1 || month > 12 {
		return time.Time{}, errctx.New(errctx.CodeRange, "date %q has invalid month", s)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, errctx.New(errctx.CodeRange, "date %q is not a valid calendar date", s)
	}
	return t, nil
}

// Payload is the decoded form of a circuit invoke payload string, per the
// "wave@key:value(,key:value)*@source_command" grammar.
type Payload struct {
	HasWaveRef    bool
	WaveRef       string
	Fields        map[string]string
	SourceCommand string

	Symbol      string
	HasSymbol   bool
	Episode     uint64
	HasEpisode  bool
	Batch       uint64
	HasBatch    bool
	I           uint64
	HasI        bool
	SpanBegin   time.Time
	SpanEnd     time.Time
	HasSpan     bool
	MaxBatches  uint64
	HasMaxBatch bool
}

// ParsePayload decodes a raw invoke payload string.
func ParsePayload(raw string) (*Payload, error) {
	parts := strings.Split(raw, "@")
	p := &Payload{}
	var fieldsText string
	switch {
	case len(parts) == 1:
		p.SourceCommand = raw
		fieldsText = raw
	default:
		p.HasWaveRef = true
		p.WaveRef = parts[0]
		fieldsText = parts[1]
		p.SourceCommand = strings.Join(parts[2:], "@")
	}

	fields, err := parseFieldList(fieldsText)
	if err != nil {
		return nil, err
	}
	p.Fields = fields

	var haveFrom, haveTo, haveFromMs, haveToMs bool
	var from, to time.Time
	var fromMs, toMs int64

	for key, value := range fields {
		switch key {
		case "symbol":
			p.Symbol = value
			p.HasSymbol = true
		case "episode":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, errctx.New(errctx.CodeSchema, "invalid episode value %q", value)
			}
			p.Episode = n
			p.HasEpisode = true
		case "batch":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, errctx.New(errctx.CodeSchema, "invalid batch value %q", value)
			}
			p.Batch = n
			p.HasBatch = true
		case "i":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, errctx.New(errctx.CodeSchema, "invalid i value %q", value)
			}
			p.I = n
			p.HasI = true
		case "max_batches":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, errctx.New(errctx.CodeSchema, "invalid max_batches value %q", value)
			}
			p.MaxBatches = n
			p.HasMaxBatch = true
		case "from":
			t, err := parseDayStart(value)
			if err != nil {
				return nil, err
			}
			from = t
			haveFrom = true
		case "to":
			t, err := parseDayEnd(value)
			if err != nil {
				return nil, err
			}
			to = t
			haveTo = true
		case "from_ms":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return nil, errctx.New(errctx.CodeSchema, "invalid from_ms value %q", value)
			}
			fromMs = n
			haveFromMs = true
		case "to_ms":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return nil, errctx.New(errctx.CodeSchema, "invalid to_ms value %q", value)
			}
			toMs = n
			haveToMs = true
		}
	}

	if haveFrom != haveTo {
		return nil, errctx.New(errctx.CodeSchema, "from/to must both be present or both absent")
	}
	if haveFromMs != haveToMs {
		return nil, errctx.New(errctx.CodeSchema, "from_ms/to_ms must both be present or both absent")
	}
	if haveFrom && haveFromMs {
		return nil, errctx.New(errctx.CodeSchema, "cannot specify both from/to and from_ms/to_ms")
	}
	if haveFromMs {
		from = time.UnixMilli(fromMs).UTC()
		to = time.UnixMilli(toMs).UTC()
	}
	if haveFrom || haveFromMs {
		if to.Before(from) {
			from, to = to, from
		}
		p.SpanBegin = from
		p.SpanEnd = to
		p.HasSpan = true
	}

	return p, nil
}

// parseFieldList parses a comma-separated "key:value" list. Tokens without a
// colon are ignored (treated as opaque source-command text rather than a
// recognized field).
func parseFieldList(s string) (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, tokStr := range strings.Split(s, ",") {
		tokStr = strings.TrimSpace(tokStr)
		if tokStr == "" {
			continue
		}
		colon := strings.IndexByte(tokStr, ':')
		if colon < 0 {
			continue
		}
		key := strings.TrimSpace(tokStr[:colon])
		value := strings.TrimSpace(tokStr[colon+1:])
		if key == "" {
			return nil, errctx.New(errctx.CodeParse, "empty field key in payload token %q", tokStr)
		}
		out[key] = value
	}
	return out, nil
}
