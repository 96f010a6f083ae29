package transport

import "encoding/json"

// Procedure paths of the leaderboard service.
const (
	ServiceName = "ascnd.v1.AscndService"

	SubmitScoreProcedure    = "/" + ServiceName + "/SubmitScore"
	GetLeaderboardProcedure = "/" + ServiceName + "/GetLeaderboard"
	GetPlayerRankProcedure  = "/" + ServiceName + "/GetPlayerRank"
)

// JSONCodec encodes plain Go contract structs as Connect JSON. It replaces
// connect's built-in "json" codec, which only accepts protobuf messages.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
