package redis

const (
	keyPrefix = "sparkboard/"

	// KeyPrefixBoard is the key prefix for board documents
	KeyPrefixBoard = keyPrefix + "board/"
	// ChannelBoardChanges is the pub/sub channel for board change events
	ChannelBoardChanges = keyPrefix + "board_changes"
)
