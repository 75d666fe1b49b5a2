package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"chefitup/internal/supabase"
)

// fakeBackend keeps tables as JSON rows in memory.
type fakeBackend struct {
	mu         sync.Mutex
	tables     map[string][]map[string]any
	sessions   map[string]supabase.Session // keyed by email
	signOutErr error
	signedOut  []string
	failTable  string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tables: map[string][]map[string]any{
			tableDietRestrictions: {
				{"id": float64(1), "name": "vegetarian"},
				{"id": float64(2), "name": "vegan"},
				{"id": float64(3), "name": "gluten-free"},
			},
		},
		sessions: map[string]supabase.Session{},
	}
}

func (f *fakeBackend) SignInWithPassword(_ context.Context, email, password string) (supabase.Session, error) {
	s, ok := f.sessions[email]
	if !ok || password != "secret" {
		return supabase.Session{}, &supabase.Error{StatusCode: 400, Body: `{"error":"invalid_grant"}`}
	}
	return s, nil
}

func (f *fakeBackend) SignUp(_ context.Context, email, _ string, _ map[string]any) (supabase.Session, error) {
	s, ok := f.sessions[email]
	if !ok {
		return supabase.Session{User: supabase.User{ID: "pending", Email: email}}, nil
	}
	return s, nil
}

func (f *fakeBackend) SignOut(_ context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedOut = append(f.signedOut, accessToken)
	return f.signOutErr
}

func (f *fakeBackend) AuthorizeURL(provider, redirectTo string) string {
	return "https://auth.test/authorize?provider=" + provider + "&redirect_to=" + redirectTo
}

func (f *fakeBackend) Select(_ context.Context, _, table, _ string, out any, filters ...supabase.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if table == f.failTable {
		return &supabase.Error{StatusCode: 500, Body: "boom"}
	}

	var rows []map[string]any
	for _, row := range f.tables[table] {
		if matches(row, filters) {
			rows = append(rows, row)
		}
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (f *fakeBackend) Insert(_ context.Context, _, table string, rows any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if table == f.failTable {
		return &supabase.Error{StatusCode: 500, Body: "boom"}
	}
	decoded, err := toRows(rows)
	if err != nil {
		return err
	}
	f.tables[table] = append(f.tables[table], decoded...)
	return nil
}

func (f *fakeBackend) Upsert(_ context.Context, _, table string, rows any, onConflict string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if table == f.failTable {
		return &supabase.Error{StatusCode: 500, Body: "boom"}
	}
	decoded, err := toRows(rows)
	if err != nil {
		return err
	}
	for _, row := range decoded {
		replaced := false
		for i, existing := range f.tables[table] {
			if fmt.Sprint(existing[onConflict]) == fmt.Sprint(row[onConflict]) {
				for k, v := range row {
					f.tables[table][i][k] = v
				}
				replaced = true
			}
		}
		if !replaced {
			f.tables[table] = append(f.tables[table], row)
		}
	}
	return nil
}

func (f *fakeBackend) Delete(_ context.Context, _, table string, filters ...supabase.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := []map[string]any{}
	for _, row := range f.tables[table] {
		if !matches(row, filters) {
			kept = append(kept, row)
		}
	}
	f.tables[table] = kept
	return nil
}

func (f *fakeBackend) rows(table string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[table]
}

func toRows(rows any) ([]map[string]any, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	var many []map[string]any
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one map[string]any
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []map[string]any{one}, nil
}

func matches(row map[string]any, filters []supabase.Filter) bool {
	for _, f := range filters {
		value := fmt.Sprint(row[f.Column])
		switch {
		case strings.HasPrefix(f.Expr, "eq."):
			if value != strings.TrimPrefix(f.Expr, "eq.") {
				return false
			}
		case strings.HasPrefix(f.Expr, "in.("):
			list := strings.TrimSuffix(strings.TrimPrefix(f.Expr, "in.("), ")")
			found := false
			for _, v := range strings.Split(list, ",") {
				if strings.Trim(v, `"`) == value {
					found = true
				}
			}
			if !found {
				return false
			}
		default:
			panic(errors.New("unsupported filter " + f.Expr))
		}
	}
	return true
}
