// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package usbserial

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/wneessen/coordserve/internal/producer"
)

var (
	jsonObject   = regexp.MustCompile(`\{[^}]+\}`)
	receiverLine = regexp.MustCompile(`DEC lat/lon:\s*(-?\d+)\s*,\s*(-?\d+)`)
)

// Fix is a coordinate decoded from a single device line.
type Fix struct {
	Lat    float64
	Lon    float64
	Format string
}

type e7Object struct {
	Lat  *int64 `json:"lat"`
	Long *int64 `json:"long"`
}

// ParseLine decodes a coordinate from one line of device output. Supported are NMEA GGA sentences
// with a GPS or DGPS fix, valid NMEA RMC sentences, JSON objects carrying "lat" and "long" in
// degrees times 10^7, and receiver lines of the form "DEC lat/lon: <lat>, <lon>" in the same unit.
func ParseLine(line string) (Fix, bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return Fix{}, false
	case strings.HasPrefix(line, "$"):
		return parseNMEA(line)
	case strings.Contains(line, "{"):
		return parseJSON(line)
	default:
		return parseReceiver(line)
	}
}

func parseNMEA(line string) (Fix, bool) {
	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, false
	}

	switch s := sentence.(type) {
	case nmea.GGA:
		if s.FixQuality != nmea.GPS && s.FixQuality != nmea.DGPS {
			return Fix{}, false
		}
		return Fix{Lat: s.Latitude, Lon: s.Longitude, Format: "nmea"}, true
	case nmea.RMC:
		if s.Validity != nmea.ValidRMC {
			return Fix{}, false
		}
		return Fix{Lat: s.Latitude, Lon: s.Longitude, Format: "nmea"}, true
	default:
		return Fix{}, false
	}
}

func parseJSON(line string) (Fix, bool) {
	for _, match := range jsonObject.FindAllString(line, -1) {
		var obj e7Object
		if err := json.Unmarshal([]byte(match), &obj); err != nil {
			continue
		}
		if obj.Lat == nil || obj.Long == nil {
			continue
		}
		return Fix{Lat: producer.FromE7(*obj.Lat), Lon: producer.FromE7(*obj.Long), Format: "json"}, true
	}
	return Fix{}, false
}

func parseReceiver(line string) (Fix, bool) {
	match := receiverLine.FindStringSubmatch(line)
	if match == nil {
		return Fix{}, false
	}
	lat, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return Fix{}, false
	}
	lon, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil {
		return Fix{}, false
	}
	return Fix{Lat: producer.FromE7(lat), Lon: producer.FromE7(lon), Format: "receiver"}, true
}
