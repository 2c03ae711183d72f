package workflow

import (
	"github.com/tagus/enterprise-agents/pkg/chains"
	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/memory"
	"github.com/tagus/enterprise-agents/pkg/sqlanalyst"
)

// State flows through the graph. The request fields are set by the caller;
// the rest are filled in by the nodes.
type State struct {
	Query     string
	Username  string
	Timestamp string
	UserID    string
	SessionID string
	DocIDs    []string
	Images    []interfaces.ImagePart
	History   []interfaces.Message
	WebSearch bool

	EnterpriseContext string
	ImageContext      string

	RAGQuery   string
	WebQuery   string
	ImageQuery string

	RAGContext []interfaces.Document
	WebContext []interfaces.Document
	// Context accumulates the graded documents of every retrieval path
	Context []interfaces.Document

	// Gathered is the detail collected by the information gatherer
	Gathered   string
	SoWType    string
	SoWDetails *chains.SoWDetails

	SQL       *sqlanalyst.Result
	SQLSearch bool
	Charts    map[string]string

	Answer         string
	NumGenerations int
	// Filtered is set when the provider rejected the generation and the
	// content-safety fallback was streamed instead
	Filtered bool

	ImageBlobURL string
	PDFBlobURL   string
	PDFFilename  string
	DocxBlobURL  string
	DocxFilename string
}

func (s State) input() chains.Input {
	return chains.Input{
		Query:             s.Query,
		Username:          s.Username,
		Timestamp:         s.Timestamp,
		EnterpriseContext: s.EnterpriseContext,
		ImageContext:      s.ImageContext,
		History:           s.History,
		Images:            s.Images,
		WebSearch:         s.WebSearch,
	}
}

func (s State) session(agent string) memory.Session {
	return memory.Session{Agent: agent, UserID: s.UserID, SessionID: s.SessionID}
}
