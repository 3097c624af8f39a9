package protocol

import "errors"

var (
	ErrCodecTruncated = errors.New("protocol: truncated or malformed item payload")
)
