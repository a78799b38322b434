package zmqmsg

import "fmt"

// Topic identifies the kind of notification carried in the first frame of a
// multipart message, and with it the rule used to decode the body.
type Topic uint8

const (
	// TopicHashBlock notifies about a new chain tip by block hash.
	TopicHashBlock Topic = iota

	// TopicHashTx notifies about a transaction by its hash, both when it
	// enters the mempool and when it is included in a block.
	TopicHashTx

	// TopicRawBlock is TopicHashBlock with the fully serialized block.
	TopicRawBlock

	// TopicRawTx is TopicHashTx with the fully serialized transaction.
	TopicRawTx

	// TopicSequence notifies about block (dis)connections and mempool
	// acceptance/removal.
	TopicSequence
)

// MaxTopicLen is the length of the longest recognized topic name.
const MaxTopicLen = len("hashblock")

var topicNames = [...]string{
	TopicHashBlock: "hashblock",
	TopicHashTx:    "hashtx",
	TopicRawBlock:  "rawblock",
	TopicRawTx:     "rawtx",
	TopicSequence:  "sequence",
}

// AllTopics is the complete, fixed set of topics a node publishes.
var AllTopics = []Topic{
	TopicHashBlock, TopicHashTx, TopicRawBlock, TopicRawTx, TopicSequence,
}

// String returns the wire name of the topic.
func (t Topic) String() string {
	if int(t) < len(topicNames) {
		return topicNames[t]
	}

	return fmt.Sprintf("Topic(%d)", uint8(t))
}

// Bytes returns the wire name of the topic as it appears in the topic frame.
func (t Topic) Bytes() []byte {
	return []byte(t.String())
}

// ParseTopic matches a topic frame against the recognized topic names. The
// match is exact: no trimming, case folding or prefix matching is done.
func ParseTopic(b []byte) (Topic, bool) {
	switch string(b) {
	case "hashblock":
		return TopicHashBlock, true
	case "hashtx":
		return TopicHashTx, true
	case "rawblock":
		return TopicRawBlock, true
	case "rawtx":
		return TopicRawTx, true
	case "sequence":
		return TopicSequence, true
	default:
		return 0, false
	}
}

// TopicNames returns the wire names of the given topics, in order. This is
// the form a subscriber needs when setting up its subscription filters.
func TopicNames(topics ...Topic) []string {
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		names = append(names, t.String())
	}

	return names
}
