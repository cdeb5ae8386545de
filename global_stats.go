package kflow

import (
	"expvar"
	"sort"
	"time"

	"github.com/google/uuid"
	kexpvar "github.com/influxdata/kflow/expvar"
)

const (
	// List of names for top-level exported vars
	ServerIDVarName = "server_id"
	HostVarName     = "host"
	ProductVarName  = "product"
	VersionVarName  = "version"

	NumFlowsVarName = "num_flows"

	UptimeVarName = "uptime"

	// The name of the product
	Product = "kflow"
)

var (
	// Global expvars
	NumFlowsVar = &kexpvar.Int{}

	ServerIDVar = &kexpvar.String{}
	HostVar     = &kexpvar.String{}
	ProductVar  = &kexpvar.String{}
	VersionVar  = &kexpvar.String{}

	// All internal stats are added as sub-maps to this top level map.
	stats *kexpvar.Map
)

var (
	startTime time.Time
)

func init() {
	startTime = time.Now().UTC()

	expvar.Publish(NumFlowsVarName, NumFlowsVar)
	expvar.Publish(ServerIDVarName, ServerIDVar)
	expvar.Publish(HostVarName, HostVar)
	expvar.Publish(ProductVarName, ProductVar)
	expvar.Publish(VersionVarName, VersionVar)
	ProductVar.Set(Product)

	// Initialze the global stats map
	stats = &kexpvar.Map{}
	stats.Init()
	expvar.Publish(Product, stats)
}

func Uptime() time.Duration {
	return time.Since(startTime)
}

// NewStatistics creates an expvar-based map. Within there "name" is the measurement name, "tags" are the tags,
// and values are placed at the key "values".
// The "values" map is returned so that statistics can be set.
func NewStatistics(name string, tags map[string]string) (string, *kexpvar.Map) {
	key := uuid.New().String()

	m := &kexpvar.Map{}
	m.Init()

	nameVar := &kexpvar.String{}
	nameVar.Set(name)
	m.Set("name", nameVar)

	tagsVar := &kexpvar.Map{}
	tagsVar.Init()
	for k, v := range tags {
		value := &kexpvar.String{}
		value.Set(v)
		tagsVar.Set(k, value)
	}
	tagsVar.Set(HostVarName, HostVar)
	m.Set("tags", tagsVar)

	statMap := &kexpvar.Map{}
	statMap.Init()
	m.Set("values", statMap)

	stats.Set(key, m)

	return key, statMap
}

// DeleteStatistics removes a statistics map.
func DeleteStatistics(key string) {
	stats.Delete(key)
}

type StatsData struct {
	Name   string                 `json:"name"`
	Tags   map[string]string      `json:"tags"`
	Values map[string]interface{} `json:"values"`
}

// GetStatsData returns the data of all registered statistics, sorted by name and tags.
// Statistics without values are skipped.
func GetStatsData() []StatsData {
	var all []StatsData
	stats.Do(func(kv expvar.KeyValue) {
		v := kv.Value.(*kexpvar.Map)
		data := StatsData{
			Tags:   make(map[string]string),
			Values: make(map[string]interface{}),
		}
		if name, ok := v.Get("name").(*kexpvar.String); ok {
			data.Name = name.StringValue()
		}
		if tags, ok := v.Get("tags").(*kexpvar.Map); ok {
			for k, t := range tags.Values() {
				if s, ok := t.(string); ok {
					data.Tags[k] = s
				}
			}
		}
		if values, ok := v.Get("values").(*kexpvar.Map); ok {
			data.Values = values.Values()
		}
		if len(data.Values) == 0 {
			return
		}
		all = append(all, data)
	})
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].Tags["node"] < all[j].Tags["node"]
	})
	return all
}
