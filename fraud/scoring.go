package fraud

// Decision is the recommendation produced by scoring a transaction.
type Decision string

const (
	DecisionApprove Decision = "Approve"
	DecisionReview  Decision = "Review"
)

// DefaultReviewThreshold is the score above which a transaction is flagged.
const DefaultReviewThreshold = 70

// ScoreInput holds the transaction attributes the rules look at.
type ScoreInput struct {
	Amount              float64
	Type                string
	AccountBalanceAfter float64
}

// Assessment is the scoring outcome.
type Assessment struct {
	Score    int
	Decision Decision
}

// Scorer applies the additive fraud rules.
type Scorer struct {
	threshold int
}

func NewScorer(threshold int) Scorer {
	if threshold <= 0 {
		threshold = DefaultReviewThreshold
	}
	return Scorer{threshold: threshold}
}

func (s Scorer) Threshold() int {
	return s.threshold
}

// Assess scores in. Unknown transaction types contribute nothing.
func (s Scorer) Assess(in ScoreInput) Assessment {
	score := 0

	switch in.Type {
	case "Deposit":
		score += 10
	case "Withdrawal":
		score += 30
	case "Transfer":
		score += 50
	}

	switch {
	case in.Amount > 10000:
		score += 50
	case in.Amount > 5000:
		score += 30
	case in.Amount > 1000:
		score += 10
	}

	switch {
	case in.AccountBalanceAfter < 0:
		score += 50
	case in.AccountBalanceAfter < 500:
		score += 30
	}

	decision := DecisionApprove
	if score > s.threshold {
		decision = DecisionReview
	}
	return Assessment{Score: score, Decision: decision}
}
