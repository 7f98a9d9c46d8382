package domain

import (
	"testing"
	"time"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from CampaignStatus
		to   CampaignStatus
		want bool
	}{
		{"queued to in_progress", CampaignQueued, CampaignInProgress, true},
		{"queued to cancelled", CampaignQueued, CampaignCancelled, true},
		{"queued to completed skips sending", CampaignQueued, CampaignCompleted, false},
		{"in_progress to completed", CampaignInProgress, CampaignCompleted, true},
		{"in_progress to cancelled", CampaignInProgress, CampaignCancelled, true},
		{"completed is terminal", CampaignCompleted, CampaignInProgress, false},
		{"cancelled is terminal", CampaignCancelled, CampaignQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAdvanceStageMonotonicity(t *testing.T) {
	now := time.Now()

	r := CampaignResult{ID: "r1"}
	if err := r.AdvanceStage(StageSubmitted, now); err == nil {
		t.Fatal("submitted before clicked should be rejected")
	}
	if err := r.AdvanceStage(StageClicked, now); err == nil {
		t.Fatal("clicked before opened should be rejected")
	}
	if err := r.AdvanceStage(StageOpened, now); err == nil {
		t.Fatal("opened before sent should be rejected")
	}

	for _, stage := range []ResultStage{StageSent, StageOpened, StageClicked, StageSubmitted} {
		if err := r.AdvanceStage(stage, now); err != nil {
			t.Fatalf("AdvanceStage(%s) in order: %v", stage, err)
		}
	}
	if !r.Sent || !r.Opened || !r.Clicked || !r.Submitted {
		t.Errorf("all stage flags should be set: %+v", r)
	}
	if r.SubmittedAt == nil || !r.SubmittedAt.Equal(now) {
		t.Errorf("SubmittedAt = %v, want %v", r.SubmittedAt, now)
	}
}

func TestAdvanceStageRepeatIsNoOp(t *testing.T) {
	first := time.Now()
	later := first.Add(time.Hour)

	r := CampaignResult{ID: "r1"}
	if err := r.AdvanceStage(StageSent, first); err != nil {
		t.Fatal(err)
	}
	if err := r.AdvanceStage(StageOpened, first); err != nil {
		t.Fatal(err)
	}
	if err := r.AdvanceStage(StageOpened, later); err != nil {
		t.Fatalf("repeat open: %v", err)
	}
	if !r.OpenedAt.Equal(first) {
		t.Errorf("repeat open must keep the first timestamp, got %v", r.OpenedAt)
	}
}

func TestReconcileLockState(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name        string
		user        User
		wantLocked  bool
		wantChanged bool
	}{
		{"unlocked untouched", User{}, false, false},
		{"lock still active", User{AccountLocked: true, LockedUntil: &future, FailedLogins: 3}, true, false},
		{"lock expired", User{AccountLocked: true, LockedUntil: &past, FailedLogins: 3}, false, true},
		{"locked without deadline clears", User{AccountLocked: true}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := ReconcileLockState(tt.user, now)
			if got.AccountLocked != tt.wantLocked {
				t.Errorf("AccountLocked = %v, want %v", got.AccountLocked, tt.wantLocked)
			}
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if changed && (got.FailedLogins != 0 || got.LockedUntil != nil) {
				t.Errorf("cleared lock must reset counter and deadline: %+v", got)
			}
		})
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  bool
	}{
		{"valid email", "jane@example.com", true},
		{"valid with subdomain", "jane@mail.example.com", true},
		{"valid with plus", "jane+tag@example.com", true},
		{"empty", "", false},
		{"no at sign", "janeexample.com", false},
		{"no domain", "jane@", false},
		{"no local part", "@example.com", false},
		{"no tld", "jane@example", false},
		{"double at", "jane@@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidEmail(tt.email); got != tt.want {
				t.Errorf("ValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestValidateRequiredReferences(t *testing.T) {
	c := Campaign{Name: "q3 awareness", OrganizationID: "org1"}
	if err := c.Validate(); err == nil {
		t.Error("campaign without references should fail validation")
	}
	c.GroupID, c.TemplateID, c.PageID, c.SMTPProfileID = "g", "t", "p", "s"
	if err := c.Validate(); err != nil {
		t.Errorf("complete campaign should validate: %v", err)
	}

	p := LandingPage{Name: "login", HTML: "<html></html>", OrganizationID: "org1", CapturePasswords: true}
	if err := p.Validate(); err == nil {
		t.Error("password capture without credential capture should fail")
	}

	tok := PasswordResetToken{ExpiresAt: time.Now().Add(time.Hour)}
	if !tok.Usable(time.Now()) {
		t.Error("fresh token should be usable")
	}
	tok.Used = true
	if tok.Usable(time.Now()) {
		t.Error("used token should not be usable")
	}
}
