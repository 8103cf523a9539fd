package census

// Raw export column headers, exactly as the ABS labels=both CSV format emits
// them. These literals are part of the external contract with the API and
// must not be altered.
const (
	ColSex                  = "SEXP: Sex"
	ColPersonCharacteristic = "PCHAR: Selected person characteristic"
	ColHealthCondition      = "LTHP: Type of long-term health condition"
	ColAge                  = "AGEP: Age"
	ColRegion               = "REGION: Region"
	ColRegionType           = "REGION_TYPE: Region Type"
	ColState                = "STATE: State"
	ColTimePeriod           = "TIME_PERIOD: Time Period"
	ColObsValue             = "OBS_VALUE"

	// ColDataflow carries the source dataflow identifier. It is optional in
	// raw extracts and dropped before processing.
	ColDataflow = "DATAFLOW"
)

// Dataflow identifiers for the two supported Census tables.
const (
	DataflowPopulation = "C21_G01_SA2"
	DataflowHealth     = "C21_G19_SA2"
)

// Default raw artifact names written by the extract layer.
const (
	RawPopulationName = "c21_g01_sa2_selected_person_characteristics"
	RawHealthName     = "c21_g19_sa2_health_conditions"
)

// Processed artifact names for the population pipeline.
const (
	ArtifactPopulationFact = "c21_g01_sa2_population"
	ArtifactGeoLookup      = "c21_g01_sa2_geo_lookup"
	ArtifactSexLookup      = "c21_g01_sa2_sex_lookup"
	ArtifactAgeLookup      = "c21_g01_sa2_age_lookup"
	ArtifactGeogTypeLookup = "c21_g01_sa2_geog_type_lookup"
	ArtifactStateLookup    = "c21_g01_sa2_state_lookup"
)

// Processed artifact names for the health pipeline. The standalone lookup
// names are only written in LookupModeStandalone; in merge mode the shared
// dimension lookups are unioned into the population pipeline's files and the
// health condition codes into the common cross-dataset lookup.
const (
	ArtifactHealthFact            = "c21_g19_sa2_health_conditions"
	ArtifactHealthConditionLookup = "c21_g19_sa2_health_condition_lookup"
	ArtifactCommonHealthLookup    = "common_health_condition_lookup"

	ArtifactHealthGeoLookup      = "c21_g19_sa2_geo_lookup"
	ArtifactHealthSexLookup      = "c21_g19_sa2_sex_lookup"
	ArtifactHealthAgeLookup      = "c21_g19_sa2_age_lookup"
	ArtifactHealthGeogTypeLookup = "c21_g19_sa2_geog_type_lookup"
	ArtifactHealthStateLookup    = "c21_g19_sa2_state_lookup"
)
