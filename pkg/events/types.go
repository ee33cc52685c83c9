package events

const (
	TopicResultAccepted     = "typing.result.accepted"
	TopicLeaderboardRebuild = "leaderboard.rebuild"
)

type ResultAcceptedEvent struct {
	ResultID       string `json:"resultId"`
	PlayerID       string `json:"playerId"`
	WPM            int    `json:"wpm"`
	Accuracy       int    `json:"accuracy"`
	CorrectChars   int    `json:"correctChars"`
	IncorrectChars int    `json:"incorrectChars"`
	Duration       int    `json:"duration"`
	Theme          string `json:"theme"`
	Language       string `json:"language"`
	CoinsEarned    *int64 `json:"coinsEarned"`
	Timestamp      string `json:"timestamp"`
}

// LeaderboardRebuildRequestedEvent asks one instance of the consumer group to
// reload a partition from the store. Duration 0 means all partitions.
type LeaderboardRebuildRequestedEvent struct {
	Duration    int    `json:"duration"`
	RequestedBy string `json:"requestedBy"`
	Reason      string `json:"reason"`
	Timestamp   string `json:"timestamp"`
}

type LeaderboardUpdatedEvent struct {
	Duration    int    `json:"duration"`
	ResultID    string `json:"resultId"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	WPM         int    `json:"wpm"`
	Accuracy    int    `json:"accuracy"`
	Timestamp   string `json:"timestamp"`
}
