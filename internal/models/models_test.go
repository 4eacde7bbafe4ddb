package models

import (
	"strings"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
		ok   bool
	}{
		{"pending", StatusPending, true},
		{" Offered ", StatusOffered, true},
		{"In-progress", StatusInProgress, true},
		{"in progress", StatusInProgress, true},
		{"IN_PROGRESS", StatusInProgress, true},
		{"completed", StatusCompleted, true},
		{"cancelled", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStatusHasHelper(t *testing.T) {
	want := map[Status]bool{
		StatusPending:    false,
		StatusOffered:    false,
		StatusAccepted:   true,
		StatusInProgress: true,
		StatusCompleted:  true,
	}
	for st, has := range want {
		if st.HasHelper() != has {
			t.Errorf("%s.HasHelper() = %v", st, !has)
		}
	}
	if !StatusCompleted.IsTerminal() || StatusInProgress.IsTerminal() {
		t.Error("only completed is terminal")
	}
}

func TestParseRoleAndComplexity(t *testing.T) {
	if r, ok := ParseRole("Resident"); !ok || r != RoleRequester {
		t.Errorf("resident = %q, %v", r, ok)
	}
	if _, ok := ParseRole("moderator"); ok {
		t.Error("moderator should not parse")
	}
	if c, ok := ParseComplexity("HIGH"); !ok || c != ComplexityHigh {
		t.Errorf("HIGH = %q, %v", c, ok)
	}
	if _, ok := ParseComplexity("extreme"); ok {
		t.Error("extreme should not parse")
	}
}

func TestRegisterRequestValidate(t *testing.T) {
	ok := RegisterRequest{Name: "Alice", ContactInfo: "alice@example.com", Password: "secret123"}
	if errs := ok.Validate(); len(errs) != 0 {
		t.Fatalf("valid request rejected: %v", errs)
	}

	long := RegisterRequest{Name: "Alice", ContactInfo: "alice@example.com", Password: strings.Repeat("p", MaxPasswordBytes+1)}
	if errs := long.Validate(); errs["password"] == "" {
		t.Fatalf("73-byte password accepted: %v", errs)
	}
	exact := RegisterRequest{Name: "Alice", ContactInfo: "alice@example.com", Password: strings.Repeat("p", MaxPasswordBytes)}
	if errs := exact.Validate(); len(errs) != 0 {
		t.Fatalf("72-byte password rejected: %v", errs)
	}

	bad := RegisterRequest{Name: "A", ContactInfo: "Alice <alice@example.com>", Password: "123", Role: "wizard"}
	errs := bad.Validate()
	for _, field := range []string{"name", "contactInfo", "password", "role"} {
		if errs[field] == "" {
			t.Errorf("expected error for %s, got %v", field, errs)
		}
	}
}

func TestUpdateProfileRequestValidate(t *testing.T) {
	if errs := (&UpdateProfileRequest{}).Validate(); errs["body"] == "" {
		t.Fatalf("empty update accepted: %v", errs)
	}
	blank := "  "
	if errs := (&UpdateProfileRequest{Location: &blank}).Validate(); errs["location"] == "" {
		t.Fatalf("blank location accepted: %v", errs)
	}
}

func TestCreateRequestInputValidate(t *testing.T) {
	in := CreateRequestInput{Title: "Fix fence", Description: "Two loose boards", Category: "Repairs", Complexity: "low"}
	if errs := in.Validate(); len(errs) != 0 {
		t.Fatalf("valid input rejected: %v", errs)
	}

	in = CreateRequestInput{Title: strings.Repeat("x", 256), Complexity: "huge"}
	errs := in.Validate()
	for _, field := range []string{"title", "description", "category", "complexity"} {
		if errs[field] == "" {
			t.Errorf("expected error for %s, got %v", field, errs)
		}
	}
}

func TestUpdateRequestInputValidate(t *testing.T) {
	empty := ""
	in := UpdateRequestInput{Title: &empty, Category: &empty}
	errs := in.Validate()
	if errs["title"] == "" || errs["category"] == "" {
		t.Fatalf("errors = %v", errs)
	}
	if errs := (&UpdateRequestInput{}).Validate(); len(errs) != 0 {
		t.Fatalf("no-op update rejected: %v", errs)
	}
}

func TestStatusRequestsValidate(t *testing.T) {
	if errs := (&UpdateStatusRequest{}).Validate(); errs["status"] == "" {
		t.Error("missing status accepted")
	}
	if errs := (&UpdateStatusRequest{Status: "In-progress"}).Validate(); len(errs) != 0 {
		t.Errorf("In-progress rejected: %v", errs)
	}
	if errs := (&UpdateStatusRequest{Status: "completed", Note: strings.Repeat("n", 501)}).Validate(); errs["note"] == "" {
		t.Error("long note accepted")
	}
	if errs := (&AdminOverrideRequest{Status: "archived"}).Validate(); errs["status"] == "" {
		t.Error("unknown override status accepted")
	}
}

func TestRequestFilterMatches(t *testing.T) {
	created := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	req := &HelpRequest{
		RequesterID: "r1",
		HelperID:    "h1",
		Category:    "Errands",
		Status:      StatusAccepted,
		CreatedAt:   created,
	}

	tests := []struct {
		name   string
		filter RequestFilter
		want   bool
	}{
		{"empty", RequestFilter{}, true},
		{"status", RequestFilter{Status: StatusAccepted}, true},
		{"other status", RequestFilter{Status: StatusPending}, false},
		{"requester", RequestFilter{RequesterID: "r1"}, true},
		{"helper mismatch", RequestFilter{HelperID: "h2"}, false},
		{"unassigned", RequestFilter{Unassigned: true}, false},
		{"helper overrides unassigned", RequestFilter{HelperID: "h1", Unassigned: true}, true},
		{"category case", RequestFilter{Category: "errands"}, true},
		{"after", RequestFilter{CreatedAfter: created.Add(-time.Hour)}, true},
		{"after excludes", RequestFilter{CreatedAfter: created.Add(time.Hour)}, false},
		{"before excludes", RequestFilter{CreatedBefore: created.Add(-time.Hour)}, false},
		{"boundary", RequestFilter{CreatedAfter: created, CreatedBefore: created}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(req); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		in, want Page
	}{
		{Page{}, Page{Limit: DefaultPageLimit}},
		{Page{Limit: 10, Offset: 5}, Page{Limit: 10, Offset: 5}},
		{Page{Limit: 1000, Offset: -3}, Page{Limit: MaxPageLimit}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestHelpRequestClone(t *testing.T) {
	orig := &HelpRequest{
		ID:       "r1",
		Offers:   []Offer{{HelperID: "h1"}},
		Timeline: []TimelineEvent{{Status: StatusPending}},
	}
	c := orig.Clone()
	c.Offers[0].HelperID = "h2"
	c.Timeline = append(c.Timeline, TimelineEvent{Status: StatusOffered})

	if orig.Offers[0].HelperID != "h1" || len(orig.Timeline) != 1 {
		t.Fatalf("clone aliases the original: %+v", orig)
	}
	if (*HelpRequest)(nil).Clone() != nil {
		t.Fatal("nil clone should be nil")
	}
}

func TestUserCanHelp(t *testing.T) {
	if (&User{Role: RoleHelper}).CanHelp() {
		t.Error("unapproved helper can help")
	}
	if !(&User{Role: RoleHelper, IsApproved: true}).CanHelp() {
		t.Error("approved helper cannot help")
	}
	if (&User{Role: RoleRequester, IsApproved: true}).CanHelp() {
		t.Error("requester can help")
	}
	var nobody *User
	if nobody.CanHelp() {
		t.Error("nil user can help")
	}
}
