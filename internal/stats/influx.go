package stats

import (
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
)

type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Influx 把射击与拒绝写成时序点，非阻塞批量发送
type Influx struct {
	client influxdb2.Client
	writer pointWriter
	log    zerolog.Logger
}

// NewInflux 创建客户端。写入错误只记录日志，不影响模拟。
func NewInflux(url, token, org, bucket string, log zerolog.Logger) *Influx {
	client := influxdb2.NewClientWithOptions(url, token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000))
	writeAPI := client.WriteAPI(org, bucket)

	i := &Influx{
		client: client,
		writer: writeAPI,
		log:    log.With().Str("component", "influx").Str("bucket", bucket).Logger(),
	}
	go func() {
		for err := range writeAPI.Errors() {
			i.log.Error().Err(err).Msg("写入 InfluxDB 失败")
		}
	}()
	return i
}

func shotPoint(r ShotRecord) *write.Point {
	return write.NewPointWithMeasurement("shot").
		AddTag("arena", r.Arena).
		AddTag("weapon", r.Weapon).
		AddTag("mode", strconv.Itoa(int(r.Mode))).
		AddTag("hit", strconv.FormatBool(!r.Missed())).
		AddField("shooter", r.Shooter).
		AddField("damage", r.Damage).
		AddField("headshot", r.Headshot).
		AddField("beam", r.Beam).
		AddField("rewind_ms", r.RewindMs).
		AddField("padding", r.Padding).
		AddField("search_ms", r.SearchMs).
		AddField("invalid_claim", r.InvalidClaim).
		SetTime(r.Time)
}

func rejectPoint(r RejectRecord) *write.Point {
	return write.NewPointWithMeasurement("reject").
		AddTag("arena", r.Arena).
		AddTag("weapon", r.Weapon).
		AddTag("reason", r.Reason).
		AddField("shooter", r.Shooter).
		AddField("event_index", r.EventIndex).
		AddField("skew", r.ServerTime-r.ClientTime).
		SetTime(r.Time)
}

func (i *Influx) RecordShot(r ShotRecord) {
	i.writer.WritePoint(shotPoint(r))
}

func (i *Influx) RecordReject(r RejectRecord) {
	i.writer.WritePoint(rejectPoint(r))
}

func (i *Influx) Close() error {
	i.writer.Flush()
	if i.client != nil {
		i.client.Close()
	}
	return nil
}
