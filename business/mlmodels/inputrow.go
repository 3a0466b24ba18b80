package mlmodels

// inputColumn is one named column of the scorer input, the product of one or
// two feature terms.
type inputColumn struct {
	name  string
	terms []string
}

// inputColumns is the exact ordered column set the regression model was
// trained on: a selection of raw and pairwise interaction terms.
var inputColumns = []inputColumn{
	{name: "arrivals_per_hour hist_avg_delay", terms: []string{"arrivals_per_hour", "hist_avg_delay"}},
	{name: "arrivals_per_hour route_bearing", terms: []string{"arrivals_per_hour", "route_bearing"}},
	{name: "cloud_cover exp_trip_duration", terms: []string{"cloud_cover", "exp_trip_duration"}},
	{name: "cloud_cover schedule_relationship_Scheduled", terms: []string{"cloud_cover", "schedule_relationship_Scheduled"}},
	{name: "exp_trip_duration relative_humidity_2m", terms: []string{"exp_trip_duration", "relative_humidity_2m"}},
	{name: "exp_trip_duration route_bearing", terms: []string{"exp_trip_duration", "route_bearing"}},
	{name: "exp_trip_duration schedule_relationship_Scheduled", terms: []string{"exp_trip_duration", "schedule_relationship_Scheduled"}},
	{name: "exp_trip_duration stop_cluster", terms: []string{"exp_trip_duration", "stop_cluster"}},
	{name: "exp_trip_duration temperature_2m", terms: []string{"exp_trip_duration", "temperature_2m"}},
	{name: "exp_trip_duration wind_direction_10m", terms: []string{"exp_trip_duration", "wind_direction_10m"}},
	{name: "exp_trip_duration wind_speed_10m", terms: []string{"exp_trip_duration", "wind_speed_10m"}},
	{name: "hist_avg_delay", terms: []string{"hist_avg_delay"}},
	{name: "hist_avg_delay route_bearing", terms: []string{"hist_avg_delay", "route_bearing"}},
	{name: "hist_avg_delay stop_cluster", terms: []string{"hist_avg_delay", "stop_cluster"}},
	// The training pipeline filled this column with wind speed despite its
	// name. The model's coefficient fits that value, so the product keeps
	// the wind speed term.
	{name: "hist_avg_delay wind_direction_10m", terms: []string{"hist_avg_delay", "wind_speed_10m"}},
	{name: "hist_avg_delay wind_speed_10m", terms: []string{"hist_avg_delay", "wind_speed_10m"}},
	{name: "relative_humidity_2m schedule_relationship_Scheduled", terms: []string{"relative_humidity_2m", "schedule_relationship_Scheduled"}},
	{name: "route_bearing", terms: []string{"route_bearing"}},
	{name: "route_bearing stop_cluster", terms: []string{"route_bearing", "stop_cluster"}},
	{name: "route_bearing temperature_2m", terms: []string{"route_bearing", "temperature_2m"}},
	{name: "route_bearing wind_direction_10m", terms: []string{"route_bearing", "wind_direction_10m"}},
	{name: "route_bearing wind_speed_10m", terms: []string{"route_bearing", "wind_speed_10m"}},
	{name: "schedule_relationship_Scheduled temperature_2m", terms: []string{"schedule_relationship_Scheduled", "temperature_2m"}},
	{name: "stop_cluster temperature_2m", terms: []string{"stop_cluster", "temperature_2m"}},
	{name: "stop_cluster wind_direction_10m", terms: []string{"stop_cluster", "wind_direction_10m"}},
}

// InputRow is the single row input matrix consumed by the scorer: named
// columns in training order with their values.
type InputRow struct {
	Columns []string  `json:"columns"`
	Values  []float64 `json:"values"`
}

// BuildInputRow assembles the scorer input from a complete feature vector.
// Fails if any required feature is missing.
func BuildInputRow(features *FeatureVector) (*InputRow, error) {
	if err := features.Require(); err != nil {
		return nil, err
	}
	row := InputRow{
		Columns: make([]string, len(inputColumns)),
		Values:  make([]float64, len(inputColumns)),
	}
	for i, column := range inputColumns {
		value := 1.0
		for _, term := range column.terms {
			termValue, err := features.Get(term)
			if err != nil {
				return nil, err
			}
			value *= termValue
		}
		row.Columns[i] = column.name
		row.Values[i] = value
	}
	return &row, nil
}
