package model

import "testing"

func TestNormalizeReviewStatus(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		review ReviewStatus
		want   ReviewStatus
	}{
		{"legacy pending", StatusPending, "", ReviewPending},
		{"legacy active", StatusActive, "", ReviewApproved},
		{"legacy rejected", StatusRejected, "", ReviewRejected},
		{"legacy pending_payment", StatusPendingPayment, "", ReviewPending},
		{"явное значение сохраняется", StatusActive, ReviewApproved, ReviewApproved},
		{"явное значение не перезаписывается", StatusDeleted, ReviewRejected, ReviewRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Article{Status: tt.status, ReviewStatus: tt.review}
			NormalizeReviewStatus(a)
			if a.ReviewStatus != tt.want {
				t.Errorf("ReviewStatus = %q, ожидалось %q", a.ReviewStatus, tt.want)
			}
		})
	}

	// nil не паникует
	NormalizeReviewStatus(nil)
}

func TestValidSlot(t *testing.T) {
	for _, s := range []int{1, 30, 60} {
		if !ValidSlot(s) {
			t.Errorf("ValidSlot(%d) = false", s)
		}
	}
	for _, s := range []int{-1, 0, 61, 100} {
		if ValidSlot(s) {
			t.Errorf("ValidSlot(%d) = true", s)
		}
	}
}

func TestArticle_Listed(t *testing.T) {
	base := Article{Status: StatusActive, IsVisible: true, Score: 5}
	if !base.Listed(1) {
		t.Error("активная видимая статья с достаточным score должна попадать в список")
	}

	hidden := base
	hidden.IsVisible = false
	if hidden.Listed(1) {
		t.Error("невидимая статья не должна попадать в список")
	}

	pending := base
	pending.Status = StatusPending
	if pending.Listed(1) {
		t.Error("pending статья не должна попадать в список")
	}

	if base.Listed(10) {
		t.Error("статья со score ниже порога не должна попадать в список")
	}
}
