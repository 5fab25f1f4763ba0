package consts

const (
	AgentNameSupervisor = "supervisor"
	AgentNameResearcher = "researcher"
	AgentNameAnalyst    = "analyst"
	AgentNameWriter     = "writer"
	AgentNameArchivist  = "archivist"
	AgentNameWebSearch  = "web_search"
	AgentNameTranslator = "translator"

	// Finish is the supervisor decision that ends a run.
	Finish = "FINISH"
	// StartAgent is CurrentAgent before any agent has run.
	StartAgent = "start"
)

// CoreMembers must all be enabled for a team to be built.
var CoreMembers = []string{
	AgentNameResearcher,
	AgentNameAnalyst,
	AgentNameWriter,
}

// SourceMembers feed the translator rather than the supervisor.
var SourceMembers = []string{
	AgentNameArchivist,
	AgentNameWebSearch,
}

// Findings section keys.
const (
	FindingResearch    = "research"
	FindingAnalysis    = "analysis"
	FindingArchive     = "archive"
	FindingWeb         = "web"
	FindingTranslation = "translation"
)
