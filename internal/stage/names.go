package stage

const (
	ValidateConfigStage     = "validate-config"
	CompareDirectoriesStage = "compare-directories"
	CreateOperationsStage   = "create-operations"
	AssembleDeltaStage      = "assemble-delta"
	WriteMetadataStage      = "write-metadata"
)
