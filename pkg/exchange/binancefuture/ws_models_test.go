package binancefuture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDepthFrame = `{"stream":"btcusdt@depth@100ms","data":{"e":"depthUpdate",` +
	`"E":1571889248277,"T":1571889248276,"s":"BTCUSDT","U":390497796,"u":390497878,` +
	`"pu":390497794,"b":[["7403.89","0.002"]],"a":[["7405.96","3.340"]]}}`

func TestParseCombinedStreamFrame(t *testing.T) {
	frame, err := ParseCombinedStreamFrame([]byte(sampleDepthFrame))
	require.NoError(t, err)
	assert.Equal(t, "btcusdt@depth@100ms", frame.Stream)

	kind, err := ParseEventKind(frame.Data)
	require.NoError(t, err)
	assert.Equal(t, WSEventDepthUpdate, kind.EventType)
	assert.Equal(t, "BTCUSDT", kind.Symbol)

	event, err := ParseDepthEvent(frame.Data)
	require.NoError(t, err)
	assert.Equal(t, int64(390497796), event.FirstUpdateID)
	assert.Equal(t, int64(390497878), event.FinalUpdateID)
	assert.Equal(t, int64(390497794), event.PrevFinalUpdateID)
	require.Len(t, event.Bids, 1)
	assert.Equal(t, "7403.89", event.Bids[0][0])
}

func TestParseCombinedStreamFrameRejectsJunk(t *testing.T) {
	_, err := ParseCombinedStreamFrame([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseCombinedStreamFrame([]byte(`{"foo":"bar"}`))
	assert.Error(t, err)
}

func TestParseAggTradeEvent(t *testing.T) {
	payload := `{"e":"aggTrade","E":123456789,"s":"BTCUSDT","a":5933014,` +
		`"p":"0.001","q":"100","f":100,"l":105,"T":123456785,"m":true}`
	event, err := ParseAggTradeEvent([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, WSEventAggTrade, event.EventType)
	assert.Equal(t, int64(5933014), event.ID)
	assert.InEpsilon(t, 0.001, event.Price, 1e-9)
	assert.True(t, event.IsBuyerMaker)
}

func TestParseMiniTickerEvent(t *testing.T) {
	payload := `{"e":"24hrMiniTicker","E":123456789,"s":"BTCUSDT","c":"0.0025",` +
		`"o":"0.0010","h":"0.0026","l":"0.0009","v":"10000","q":"18"}`
	event, err := ParseMiniTickerEvent([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, WSEventMiniTicker, event.EventType)
	assert.InEpsilon(t, 0.0025, event.ClosePrice, 1e-9)
	assert.InEpsilon(t, 10000.0, event.Volume, 1e-9)
}
