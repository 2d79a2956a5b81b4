// Package report renders forecast results as the chat replies users expect.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/i474232898/snow-report/internal/weather"
)

const (
	Complete              = "Complete"
	PleaseCheckDM         = "Please check your DM"
	ZeroPrecipitationNote = "please note that 0mm total precipitation does not mean there is no snow, it just means that the snowfall is not significant."
	ListingHint           = "To check for snow, put a ! at the beginning of the searchable keyword and snow at the end. For example, to search for 4 day forecast of whistler, type !checksnow <insert key here>"
)

// Number formats f the way the replies always have: integral values keep one
// decimal ("5.0"), anything else uses the shortest exact form.
func Number(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// List formats values as a bracketed, quoted list, e.g. ['snow', 'rain'].
func List(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// UnknownKey is the reply for a resort key missing from the registry.
func UnknownKey(key string) string {
	return fmt.Sprintf("Error, I cannot find the key %q in my database, please check the key and try again.", key)
}

// Snow is the 4-day snow outlook reply.
func Snow(name string, o weather.SnowOutlook) string {
	if o.HasSnow {
		return fmt.Sprintf("%s is expecting snow in the next 4 days (%s mm)", name, Number(o.TotalPrecipitation))
	}
	return fmt.Sprintf("%s is not expecting snow in the next 4 days", name)
}

func CurrentTemperature(name string, c weather.CurrentConditions) string {
	return fmt.Sprintf("The current temperature of %s is %s degrees C", name, Number(c.Temperature))
}

func CurrentFeelsLike(name string, c weather.CurrentConditions) string {
	return fmt.Sprintf("It currently feels like %s degrees C at %s", Number(c.FeelsLike), name)
}

func TomorrowTemperature(name string, t weather.TomorrowSummary) string {
	return fmt.Sprintf("<%s> Temperature: %s degrees C", name, Number(t.Temperature))
}

func TomorrowFeelsLike(name string, t weather.TomorrowSummary) string {
	return fmt.Sprintf("<%s> Feels like: %s degrees C", name, Number(t.FeelsLike))
}

func TomorrowPrecipitation(name string, t weather.TomorrowSummary) string {
	return fmt.Sprintf("<%s> Total precipitation tomorrow: %s mm", name, Number(t.Precipitation))
}

func TomorrowPrecipitationTypes(name string, t weather.TomorrowSummary) string {
	return fmt.Sprintf("<%s> Precipitation types: %s", name, List(t.PrecipitationTypes))
}

// Tomorrow is the full next-day reply, one line per aggregate.
func Tomorrow(name string, t weather.TomorrowSummary) []string {
	return []string{
		TomorrowTemperature(name, t),
		TomorrowFeelsLike(name, t),
		TomorrowPrecipitation(name, t),
		TomorrowPrecipitationTypes(name, t),
	}
}

// CountryNotice opens a country snow report, e.g. for "Canadian" resorts.
func CountryNotice(adjective string) string {
	return fmt.Sprintf("Checking snow reports for %s resorts.... %s", adjective, ZeroPrecipitationNote)
}

// Listing is one line of the searchable resorts list.
func Listing(name, key string) string {
	return fmt.Sprintf("<Resort Name>: %s | <keyword>: %s", name, key)
}
