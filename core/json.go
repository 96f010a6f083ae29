package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Protobuf-backed Connect servers emit protojson: 64-bit integers arrive as
// quoted strings and enums as upper-case proto names. Decoding accepts that
// form alongside the plain one.

// jsonInt64 decodes a JSON number or a quoted decimal string.
type jsonInt64 int64

func (n *jsonInt64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid int64 %s: %w", data, err)
	}
	*n = jsonInt64(v)
	return nil
}

func (n *jsonInt64) ptr() *int64 {
	if n == nil {
		return nil
	}
	v := int64(*n)
	return &v
}

// enumName reduces a proto enum name such as ANTICHEAT_ACTION_SHADOW_BAN to
// its lower-case token by stripping the first matching prefix.
func enumName(data []byte, prefixes ...string) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", err
	}
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimPrefix(s, p)
			break
		}
	}
	s = strings.ToLower(s)
	if s == "unspecified" {
		s = ""
	}
	return s, nil
}

func (a *AnticheatAction) UnmarshalJSON(data []byte) error {
	s, err := enumName(data, "ANTICHEAT_ACTION_", "ACTION_")
	if err != nil {
		return err
	}
	*a = AnticheatAction(s)
	return nil
}

func (f *AnticheatFlagType) UnmarshalJSON(data []byte) error {
	s, err := enumName(data, "ANTICHEAT_FLAG_TYPE_", "FLAG_TYPE_")
	if err != nil {
		return err
	}
	*f = AnticheatFlagType(s)
	return nil
}

func (r *SubmitScoreRequest) UnmarshalJSON(data []byte) error {
	type plain SubmitScoreRequest
	aux := struct {
		*plain
		Score jsonInt64 `json:"score"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Score = int64(aux.Score)
	return nil
}

func (e *LeaderboardEntry) UnmarshalJSON(data []byte) error {
	type plain LeaderboardEntry
	aux := struct {
		*plain
		Score jsonInt64 `json:"score"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Score = int64(aux.Score)
	return nil
}

func (r *GetPlayerRankResponse) UnmarshalJSON(data []byte) error {
	type plain GetPlayerRankResponse
	aux := struct {
		*plain
		Score     *jsonInt64 `json:"score,omitempty"`
		BestScore *jsonInt64 `json:"bestScore,omitempty"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Score = aux.Score.ptr()
	r.BestScore = aux.BestScore.ptr()
	return nil
}
