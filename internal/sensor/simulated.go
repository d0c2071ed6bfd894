package sensor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/tspannhw/thermal-streamer/internal/domain"
	"github.com/tspannhw/thermal-streamer/internal/platform/utils"

	"github.com/google/uuid"
)

const systemTimeLayout = "01/02/2006 15:04:05"

// SimulatedProducer generates plausible readings around slowly drifting
// baselines.  Host identity fields are real so the rows are attributable
// to the machine that produced them.
type SimulatedProducer struct {
	hostname   string
	ipAddress  string
	macAddress string

	rng *rand.Rand

	baseTemperature float64
	baseHumidity    float64
	baseCO2         float64
	basePressure    float64
}

func NewSimulatedProducer() *SimulatedProducer {
	hostname := utils.GetHostname()

	ipAddress := ""
	if ip := utils.GetIPAddress(); ip != nil {
		ipAddress = ip.String()
	}

	return &SimulatedProducer{
		hostname:        hostname,
		ipAddress:       ipAddress,
		macAddress:      utils.GetMACAddress(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		baseTemperature: 22.0,
		baseHumidity:    45.0,
		baseCO2:         420.0,
		basePressure:    101325.0,
	}
}

func (p *SimulatedProducer) ReadBatch(ctx context.Context, count int) (domain.Batch, error) {
	batch := make(domain.Batch, 0, count)

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch = append(batch, p.read())
	}

	return batch, nil
}

func (p *SimulatedProducer) read() domain.Reading {
	startTime := time.Now()

	// Baselines drift a little with every sample so consecutive readings
	// look like a sensor, not a constant.
	p.baseTemperature += p.rng.Float64()*0.2 - 0.1
	p.baseHumidity += p.rng.Float64()*0.4 - 0.2
	p.baseCO2 += p.rng.Float64()*4.0 - 2.0
	p.basePressure += p.rng.Float64()*20.0 - 10.0

	temperature := round(p.baseTemperature+p.rng.Float64()*0.5-0.25, 4)
	humidity := round(p.baseHumidity+p.rng.Float64()*2.0-1.0, 2)
	co2 := round(p.baseCO2+p.rng.Float64()*20.0-10.0, 2)
	pressure := round(p.basePressure+p.rng.Float64()*200.0-100.0, 2)
	tvoc := round(p.rng.Float64()*500.0, 3)
	cpuTempC := 40.0 + p.rng.Float64()*20.0
	cpuTempF := int(cpuTempC*9.0/5.0 + 32.0)

	endTime := time.Now()
	elapsed := endTime.Sub(startTime)

	rowUUID := uuid.New().String()
	timestampStr := startTime.Format("20060102150405")
	shortHost := p.hostname
	if len(shortHost) > 3 {
		shortHost = shortHost[:3]
	}

	return domain.Reading{
		UUID:             fmt.Sprintf("thrml_%s_%s", shortHost, timestampStr),
		RowID:            fmt.Sprintf("%s_%s", timestampStr, rowUUID),
		Hostname:         p.hostname,
		Host:             p.hostname,
		IPAddress:        p.ipAddress,
		MACAddress:       p.macAddress,
		Temperature:      temperature,
		Humidity:         humidity,
		CO2:              co2,
		EquivalentCO2PPM: round(co2*0.9, 5),
		TotalVOCPPB:      tvoc,
		Pressure:         pressure,
		CPUTempF:         cpuTempF,
		TemperatureICP:   round(temperature*9.0/5.0+32.0, 2),
		CPU:              round(p.rng.Float64()*100.0, 1),
		Memory:           round(30.0+p.rng.Float64()*40.0, 1),
		DiskUsage:        fmt.Sprintf("%.1f", 20.0+p.rng.Float64()*50.0),
		Runtime:          int(elapsed.Round(time.Second).Seconds()),
		TS:               startTime.Unix(),
		SystemTime:       startTime.Format(systemTimeLayout),
		StartTime:        startTime.Format(systemTimeLayout),
		EndTime:          strconv.FormatFloat(float64(endTime.UnixNano())/1e9, 'f', 6, 64),
		DatetimeStamp:    startTime.Format(time.RFC3339),
		TE:               strconv.FormatFloat(elapsed.Seconds(), 'f', 6, 64),
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
