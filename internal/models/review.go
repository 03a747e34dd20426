package models

import (
	"errors"
	"math"
	"time"

	"github.com/lib/pq"
)

// Review is customer feedback for a product; one per (product, customer).
type Review struct {
	ID                 string         `db:"id" json:"id"`
	ProductID          string         `db:"product_id" json:"productId"`
	CustomerID         string         `db:"customer_id" json:"customerId"`
	CustomerName       string         `db:"customer_name" json:"customerName"`
	Rating             int            `db:"rating" json:"rating"`
	Title              string         `db:"title" json:"title"`
	Comment            string         `db:"comment" json:"comment"`
	Images             pq.StringArray `db:"images" json:"images"`
	IsVerifiedPurchase bool           `db:"is_verified_purchase" json:"isVerifiedPurchase"`
	IsPublished        bool           `db:"is_published" json:"isPublished"`
	HelpfulCount       int            `db:"helpful_count" json:"helpfulCount"`
	NotHelpfulCount    int            `db:"not_helpful_count" json:"notHelpfulCount"`
	HelpfulVotes       []string       `db:"-" json:"helpfulVotes,omitempty"`
	NotHelpfulVotes    []string       `db:"-" json:"notHelpfulVotes,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updatedAt"`
}

// VoteState is a voter's current position on a review.
type VoteState string

// VoteAction is a requested change to a voter's position.
type VoteAction string

const (
	VoteNone       VoteState = ""
	VoteHelpful    VoteState = "helpful"
	VoteNotHelpful VoteState = "not_helpful"
)

const (
	ActionHelpful    VoteAction = "helpful"
	ActionNotHelpful VoteAction = "not_helpful"
	ActionRemove     VoteAction = "remove"
)

var (
	ErrAlreadyVoted = errors.New("already voted")
	ErrNotVoted     = errors.New("not voted")
)

// VoteDelta is the change to apply to the helpful/not-helpful counters.
type VoteDelta struct {
	Helpful    int
	NotHelpful int
}

// ApplyVote runs the per-(review, voter) state machine. Voting for one side
// evicts an existing vote on the other side; repeating a vote or removing a
// vote that does not exist is rejected.
func ApplyVote(current VoteState, action VoteAction) (VoteState, VoteDelta, error) {
	switch action {
	case ActionHelpful:
		switch current {
		case VoteHelpful:
			return current, VoteDelta{}, ErrAlreadyVoted
		case VoteNotHelpful:
			return VoteHelpful, VoteDelta{Helpful: 1, NotHelpful: -1}, nil
		default:
			return VoteHelpful, VoteDelta{Helpful: 1}, nil
		}
	case ActionNotHelpful:
		switch current {
		case VoteNotHelpful:
			return current, VoteDelta{}, ErrAlreadyVoted
		case VoteHelpful:
			return VoteNotHelpful, VoteDelta{Helpful: -1, NotHelpful: 1}, nil
		default:
			return VoteNotHelpful, VoteDelta{NotHelpful: 1}, nil
		}
	case ActionRemove:
		switch current {
		case VoteHelpful:
			return VoteNone, VoteDelta{Helpful: -1}, nil
		case VoteNotHelpful:
			return VoteNone, VoteDelta{NotHelpful: -1}, nil
		default:
			return current, VoteDelta{}, ErrNotVoted
		}
	}
	return current, VoteDelta{}, errors.New("unknown vote action")
}

// RatingSummary is the derived rating data persisted on a product.
type RatingSummary struct {
	Average float64 `db:"average" json:"averageRating"`
	Count   int     `db:"count" json:"reviewCount"`
}

// RoundRating rounds to one decimal place.
func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

// ComputeRating aggregates published review ratings.
func ComputeRating(ratings []int) RatingSummary {
	if len(ratings) == 0 {
		return RatingSummary{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return RatingSummary{
		Average: RoundRating(float64(sum) / float64(len(ratings))),
		Count:   len(ratings),
	}
}

// ReviewFilter carries review listing options.
type ReviewFilter struct {
	ProductID     string
	CustomerID    string
	PublishedOnly bool
	Rating        int
	Sort          string
	Page          int
	Limit         int
}
