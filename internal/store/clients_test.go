package store

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
	"github.com/Alltagsbruecke/SignUp-APP/internal/testutil"
)

func TestCreate_AssignsSequentialIDs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	anna, err := s.Create(ctx, "Anna", []record.Field{{Key: "Phone", Value: "123"}})
	if err != nil {
		t.Fatalf("Create(Anna) failed: %v", err)
	}
	ben, err := s.Create(ctx, "Ben", nil)
	if err != nil {
		t.Fatalf("Create(Ben) failed: %v", err)
	}

	if anna.ID != 1 || ben.ID != 2 {
		t.Errorf("ids = %d, %d; want 1, 2", anna.ID, ben.ID)
	}
	if !anna.CreatedAt.Equal(testutil.DefaultStart) {
		t.Errorf("CreatedAt = %v, want %v", anna.CreatedAt, testutil.DefaultStart)
	}
	if ben.Fields == nil || len(ben.Fields) != 0 {
		t.Errorf("Ben fields = %#v, want empty non-nil", ben.Fields)
	}
}

func TestCreate_NormalizesName(t *testing.T) {
	s := createTestStore(t)

	c, err := s.Create(context.Background(), "  Müller  ", nil)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if c.Name != "Müller" {
		t.Errorf("Name = %q, want NFC trimmed form", c.Name)
	}
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		client string
		fields []record.Field
	}{
		{"empty name", "", nil},
		{"blank name", "   ", nil},
		{"empty key", "Anna", []record.Field{{Key: " ", Value: "x"}}},
		{"reserved key", "Anna", []record.Field{{Key: "id", Value: "x"}}},
		{"duplicate key", "Anna", []record.Field{{Key: "Phone", Value: "1"}, {Key: "Phone", Value: "2"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t)
			ctx := context.Background()

			_, err := s.Create(ctx, tt.client, tt.fields)
			if !record.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}

			all, err := s.ListAll(ctx)
			if err != nil {
				t.Fatalf("ListAll() failed: %v", err)
			}
			if len(all) != 0 {
				t.Errorf("store has %d clients after rejected create", len(all))
			}

			// A rejected create must not consume a number.
			c, err := s.Create(ctx, "Anna", nil)
			if err != nil {
				t.Fatalf("Create() failed: %v", err)
			}
			if c.ID != 1 {
				t.Errorf("first accepted id = %d, want 1", c.ID)
			}
		})
	}
}

func TestCreate_DeleteHighestDoesNotReuse(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Anna", "Ben", "Cem"} {
		if _, err := s.Create(ctx, name, nil); err != nil {
			t.Fatalf("Create(%s) failed: %v", name, err)
		}
	}
	if err := s.Delete(ctx, 3); err != nil {
		t.Fatalf("Delete(3) failed: %v", err)
	}

	d, err := s.Create(ctx, "Dana", nil)
	if err != nil {
		t.Fatalf("Create(Dana) failed: %v", err)
	}
	if d.ID != 4 {
		t.Errorf("id after deleting highest = %d, want 4", d.ID)
	}
}

func TestCreate_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.db")
	ctx := context.Background()

	s1 := openTestStore(t, path)
	for _, name := range []string{"Anna", "Ben"} {
		if _, err := s1.Create(ctx, name, nil); err != nil {
			t.Fatalf("Create(%s) failed: %v", name, err)
		}
	}
	if err := s1.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete(2) failed: %v", err)
	}
	s1.Close()

	s2 := openTestStore(t, path)
	c, err := s2.Create(ctx, "Cem", nil)
	if err != nil {
		t.Fatalf("Create(Cem) failed: %v", err)
	}
	if c.ID != 3 {
		t.Errorf("id after restart = %d, want 3", c.ID)
	}
}

func TestCreate_Exhausted(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.db.Exec(`INSERT INTO sequences (name, value) VALUES (?, ?)`, clientSequence, int64(math.MaxInt64)); err != nil {
		t.Fatalf("seed sequence: %v", err)
	}

	_, err := s.Create(ctx, "Anna", nil)
	if !record.IsExhausted(err) {
		t.Fatalf("expected exhausted error, got %v", err)
	}

	all, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("store has %d clients after exhausted create", len(all))
	}
}

func TestCreate_Concurrent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	const n = 20
	ids := make([]int64, n)
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := s.Create(ctx, "Client", nil)
			if err != nil {
				errs <- err
				return
			}
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Create() failed: %v", err)
	}

	seen := make(map[int64]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("id %d handed out twice", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct ids, want %d", len(seen), n)
	}
}

func TestAddField_AppendsInOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx, "Anna", []record.Field{{Key: "Phone", Value: "123"}})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if err := s.AddField(ctx, c.ID, "Email", "anna@example.org"); err != nil {
		t.Fatalf("AddField() failed: %v", err)
	}

	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	keys := got.Fields.Keys()
	if len(keys) != 2 || keys[0] != "Phone" || keys[1] != "Email" {
		t.Errorf("keys = %v, want [Phone Email]", keys)
	}
}

func TestAddField_DuplicateLeavesFieldsUnchanged(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx, "Anna", []record.Field{{Key: "Phone", Value: "123"}})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	err = s.AddField(ctx, c.ID, "Phone", "999")
	if !record.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if v, _ := got.Fields.Get("Phone"); v != "123" || len(got.Fields) != 1 {
		t.Errorf("fields = %#v, want unchanged", got.Fields)
	}
}

func TestAddField_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx, "Anna", nil)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if err := s.AddField(ctx, 42, "Phone", "1"); !record.IsNotFound(err) {
		t.Errorf("unknown client: expected not found, got %v", err)
	}
	if err := s.AddField(ctx, c.ID, "", "1"); !record.IsValidation(err) {
		t.Errorf("empty key: expected validation, got %v", err)
	}
	if err := s.AddField(ctx, c.ID, "name", "1"); !record.IsValidation(err) {
		t.Errorf("reserved key: expected validation, got %v", err)
	}
	if err := s.AddField(ctx, c.ID, "Notes", strings.Repeat("x", 40000)); !record.IsValidation(err) {
		t.Errorf("oversized value: expected validation, got %v", err)
	}
	if err := s.AddField(ctx, c.ID, "Notes", "\xff"); !record.IsValidation(err) {
		t.Errorf("invalid utf-8 value: expected validation, got %v", err)
	}

	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if len(got.Fields) != 0 {
		t.Errorf("fields = %#v, want none after rejected adds", got.Fields)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Get(context.Background(), 7)
	if !record.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListAll_OrderAndFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() on empty store failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("empty store listing = %#v, want empty non-nil", empty)
	}

	if _, err := s.Create(ctx, "Anna", []record.Field{{Key: "Phone", Value: "1"}, {Key: "City", Value: "Bonn"}}); err != nil {
		t.Fatalf("Create(Anna) failed: %v", err)
	}
	if _, err := s.Create(ctx, "Ben", nil); err != nil {
		t.Fatalf("Create(Ben) failed: %v", err)
	}

	all, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	if all[0].ID != 1 || all[1].ID != 2 {
		t.Errorf("order = %d, %d; want 1, 2", all[0].ID, all[1].ID)
	}
	if keys := all[0].Fields.Keys(); len(keys) != 2 || keys[0] != "Phone" || keys[1] != "City" {
		t.Errorf("Anna keys = %v", keys)
	}
	if all[1].Fields == nil || len(all[1].Fields) != 0 {
		t.Errorf("Ben fields = %#v, want empty non-nil", all[1].Fields)
	}
	if !all[1].CreatedAt.Equal(testutil.DefaultStart.Add(time.Minute)) {
		t.Errorf("Ben CreatedAt = %v", all[1].CreatedAt)
	}
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx, "Anna", []record.Field{{Key: "Phone", Value: "1"}})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if err := s.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := s.Get(ctx, c.ID); !record.IsNotFound(err) {
		t.Errorf("Get after delete: expected not found, got %v", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM client_fields WHERE client_id = ?`, c.ID).Scan(&n); err != nil {
		t.Fatalf("count fields: %v", err)
	}
	if n != 0 {
		t.Errorf("%d orphaned fields after delete", n)
	}

	if err := s.Delete(ctx, c.ID); !record.IsNotFound(err) {
		t.Errorf("second Delete: expected not found, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx, "Anna", []record.Field{
		{Key: "Phone", Value: "1"},
		{Key: "City", Value: "Bonn"},
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	rename := "Anna Schmidt"
	err = s.Update(ctx, c.ID, record.Update{
		Name:   &rename,
		Set:    record.Fields{{Key: "Phone", Value: "2"}},
		Remove: []string{"City"},
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Name != "Anna Schmidt" {
		t.Errorf("Name = %q", got.Name)
	}
	if v, _ := got.Fields.Get("Phone"); v != "2" {
		t.Errorf("Phone = %q, want 2", v)
	}
	if got.Fields.Has("City") {
		t.Error("City still present after remove")
	}
	if !got.CreatedAt.Equal(c.CreatedAt) {
		t.Error("CreatedAt changed by update")
	}
}

func TestUpdate_IsAtomic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx, "Anna", []record.Field{{Key: "Phone", Value: "1"}})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	rename := "Other"
	err = s.Update(ctx, c.ID, record.Update{
		Name: &rename,
		Set:  record.Fields{{Key: "Missing", Value: "x"}},
	})
	if !record.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Name != "Anna" {
		t.Errorf("Name = %q, rename should have rolled back", got.Name)
	}
}

func TestUpdate_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx, "Anna", []record.Field{{Key: "Phone", Value: "1"}})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	empty := " "

	tests := []struct {
		name  string
		id    int64
		upd   record.Update
		check func(error) bool
	}{
		{"nothing", c.ID, record.Update{}, record.IsValidation},
		{"unknown client", 99, record.Update{Remove: []string{"Phone"}}, record.IsNotFound},
		{"empty name", c.ID, record.Update{Name: &empty}, record.IsValidation},
		{"remove missing", c.ID, record.Update{Remove: []string{"Email"}}, record.IsValidation},
		{"set and remove", c.ID, record.Update{Set: record.Fields{{Key: "Phone", Value: "2"}}, Remove: []string{"Phone"}}, record.IsValidation},
		{"reserved", c.ID, record.Update{Set: record.Fields{{Key: "created_at", Value: "x"}}}, record.IsValidation},
		{"control character value", c.ID, record.Update{Set: record.Fields{{Key: "Phone", Value: "1\x01"}}}, record.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Update(ctx, tt.id, tt.upd); !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
