package portal

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// List は画面側が扱う唯一の一覧の形
type List[T any] struct {
	Items []T
	Total int64
}

// 旧エンドポイントが使っていた配列のキー。先に見つかったものを使う。
var listKeys = []string{"items", "data", "records", "members", "librarians"}

// DecodeList は素の配列と {items|data|records|members|librarians, total} を同じ List にする。
// total が無ければ件数で埋める。
func DecodeList[T any](raw []byte) (List[T], error) {
	var out List[T]
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		out.Items = []T{}
		return out, nil
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &out.Items); err != nil {
			return out, fmt.Errorf("decode list: %w", err)
		}
		out.Total = int64(len(out.Items))
		return out, nil
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return out, fmt.Errorf("decode list: %w", err)
	}
	found := false
	for _, k := range listKeys {
		v, ok := env[k]
		if !ok {
			continue
		}
		found = true
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			break
		}
		if err := json.Unmarshal(v, &out.Items); err != nil {
			return out, fmt.Errorf("decode list %q: %w", k, err)
		}
		break
	}
	if !found {
		return out, fmt.Errorf("decode list: no list field in response")
	}
	if out.Items == nil {
		out.Items = []T{}
	}

	out.Total = int64(len(out.Items))
	if v, ok := env["total"]; ok {
		var total int64
		if err := json.Unmarshal(v, &total); err == nil {
			out.Total = total
		}
	}
	return out, nil
}
