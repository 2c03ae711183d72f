package chains

import (
	"context"
	"fmt"
	"strings"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/structuredoutput"
)

// Route is a query category returned by the classifier
type Route string

const (
	RouteSimple    Route = "simple_query"
	RouteRAG       Route = "rag_query"
	RouteWebSearch Route = "web_search_query"
	RouteImageGen  Route = "img_gen_query"
	RoutePDFGen    Route = "pdf_gen_query"
	RouteSQL       Route = "sql_query"
	RouteSoWDoc    Route = "sow_doc_query"
)

// AllRoutes lists every known route in prompt order
var AllRoutes = []Route{RouteSimple, RouteRAG, RouteWebSearch, RouteSQL, RouteImageGen, RoutePDFGen, RouteSoWDoc}

// ParseRoute converts a label into a Route
func ParseRoute(s string) (Route, bool) {
	for _, r := range AllRoutes {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// QueryType is the structured output of the classifier
type QueryType struct {
	QueryType string `json:"query_type" description:"Given a user query, choose to route it to one of the available categories"`
}

const classifierBasePrompt = "You are a grader tasked with assessing whether a user query " +
	"requires additional contextual information. You are part of " +
	"an LLM-based chat application designed to assist employees " +
	"of the organization based on enterprise guidelines and " +
	"the LLM's purpose. You are provided with the chat history, " +
	"the latest user query, and summaries of any uploaded documents " +
	"or shared images.\n" +
	"Current timestamp: \n\n {timestamp} \n\n" +
	"Enterprise guidelines and LLM purpose: \n\n {enterprise_context} \n\n" +
	"When considering the image context, if an image is provided, " +
	"ensure that the content of the image is taken into account " +
	"when classifying the latest query.\n\n" +
	"These are the categories you can select from:\n\n"

var routeDescriptions = map[Route]string{
	RouteSimple: "Simple answer route 'simple_query':\n" +
		"\t-Description: This route is triggered when the user's query " +
		"can be answered directly without needing additional context. " +
		"This route topics include: greetings, basic acknowledgments, " +
		"formatting instructions, or simple requests.\n" +
		"\t-Category key: 'simple_query'.\n\n",
	RouteRAG: "RAG answer route 'rag_query':\n" +
		"\t-Description: This route is triggered when the user's query " +
		"requires additional information related to the organization, internal company " +
		"documents, internal guidelines, internal policies, internal " +
		"procedures, internal information about the organization subsidiaries, " +
		"internal information related to the LLM's purpose, user's shared " +
		"or uploaded files or documents, personal documents such as " +
		"resumes, reports, personal notes, or any other user-specific content.\n" +
		"\t-Category key: 'rag_query'.\n\n",
	RouteWebSearch: "Web search answer route 'web_search_query':\n" +
		"\t-Description: This route is triggered when the user's query " +
		"requires information that can be obtained from the internet, " +
		"including web searches, retrieving online resources, real-time " +
		"information, or if the query inherently needs external " +
		"information even if not explicitly stated.\n" +
		"\t-Category key: 'web_search_query'.\n\n",
	RouteSQL: "SQL answer route 'sql_query':\n" +
		"\t-Description: This route is triggered when the user's query " +
		"requires information from the organization's SQL data warehouse. " +
		"This includes queries that need data retrieval for operational " +
		"figures, counts, statistics, schedules, trends over time or any " +
		"other tabular business data.\n" +
		"\t-Category key: 'sql_query'.\n\n",
	RouteImageGen: "Image generation answer route 'img_gen_query':\n" +
		"\t-Description: This route is triggered when the user explicitly " +
		"requests for the creation or generation of images based on provided " +
		"information or conversation context.\n" +
		"\t-Category key: 'img_gen_query'.\n\n",
	RoutePDFGen: "PDF generation answer route 'pdf_gen_query':\n" +
		"\t-Description: This route is triggered when the user's query " +
		"involves generating PDF documents based on provided information or " +
		"creating formatted document content.\n" +
		"\t-Category key: 'pdf_gen_query'.\n\n",
	RouteSoWDoc: "SoW document generation route 'sow_doc_query':\n" +
		"\t-Description: This route is triggered when the user's query " +
		"involves generating a drafted Scope of Work (SoW) document. " +
		"This includes queries related to drafting SoW documents, " +
		"creating a SoW for a RFP document, or any other tasks associated " +
		"with SoW document generation.\n" +
		"\t-Category key: 'sow_doc_query'.\n\n",
}

var routeExamples = map[Route][]string{
	RouteSimple: {
		"put it in a table", "rephrase it", "hi", "how are you?", "thank you",
		"no that's all", "bye", "who am I?", "Can you summarize this text:...",
		"What time is it?", "Convert this list into a bullet point format.",
		"Translate this sentence to French.", "What is 2+2?", "Tell me a joke.",
		"Define 'synergy'.",
	},
	RouteRAG: {
		"describe the uploaded document", "company policies", "construction compliance",
		"hr policies", "explain construction code", "what are the construction guidelines?",
		"what is the financial performance?", "what is my leave balance?",
		"give me an executive summary of the files", "what is the fire code of UAE?",
		"Analyse the uploaded file and give response", "explain parental leave policies",
		"Provide the latest financial report.", "Summarize the annual report.",
		"What are the key points in the uploaded document?",
		"What are the environmental policies of the organization?",
		"Summarize the key points from the uploaded meeting minutes.",
	},
	RouteWebSearch: {
		"gather data on papers and publications", "whats the weather like in abu dhabi today",
		"search online for the latest info", "where did u get that info?", "what is amazon?",
		"Find the latest news about the organization.",
		"Look up the current exchange rate for USD to AED.",
		"What are the current trends in global shipping?",
		"Search for recent advancements in AI technology.",
	},
	RouteSQL: {
		"how many containers are at the port now", "how many vessels are berthing today",
		"fetch the latest cargo handling statistics", "retrieve the schedule for vessel arrivals",
		"what is the average turnaround time for vessels?",
		"show the list of all active shipping lines",
		"what is the total cargo volume handled this week?",
		"how many users are registered on the app?",
		"what is the total revenue generated by services this year?",
	},
	RouteImageGen: {
		"create an infographic of the shipping routes", "generate an image of the port layout",
		"create a visual representation of the data", "show me an image of the new terminal design",
		"Generate an image of the proposed new office building.",
		"Create a visual timeline of the organization's major milestones.",
		"Generate a visual representation of the supply chain process.",
	},
	RoutePDFGen: {
		"create a PDF summary of our current conversation",
		"Create a PDF document with the provided code examples.",
		"Generate a report of the meeting notes.", "i need it as a document",
		"Generate a PDF with the quarterly financial report.",
		"Generate a word doc of the customer feedback.",
		"create a summary file of these research findings.",
	},
	RouteSoWDoc: {
		"create a new SOW document for logistics services", "generate an sow template for IT services",
		"draft an SOW for supply chain management", "fetch the sow template for consultancy services",
		"generate an RFP document for procurement of office supplies",
		"create an sow for facility management services", "draft an sow for marine services",
		"generate an RFP document for legal services",
	},
}

// ClassifierPrompt assembles the system prompt for the given routes
func ClassifierPrompt(routes []Route) string {
	var b strings.Builder
	b.WriteString(classifierBasePrompt)
	for _, r := range routes {
		b.WriteString(routeDescriptions[r])
	}
	b.WriteString("Examples:\n")
	var examples []string
	for _, r := range routes {
		for _, e := range routeExamples[r] {
			examples = append(examples, fmt.Sprintf("'%s' -> '%s'", e, r))
		}
	}
	b.WriteString(strings.Join(examples, "\n"))
	return b.String()
}

func classifierFormat(routes []Route) *interfaces.ResponseFormat {
	f := structuredoutput.NewResponseFormat(QueryType{})
	values := make([]interface{}, len(routes))
	for i, r := range routes {
		values[i] = string(r)
	}
	props := f.Schema["properties"].(map[string]any)
	prop := props["query_type"].(map[string]any)
	prop["enum"] = values
	return f
}

// Classify picks one of routes for the latest query. summaryDocs describes the
// documents the user shared. An unknown label falls back to RouteSimple.
func (c *Chains) Classify(ctx context.Context, in Input, summaryDocs string, routes []Route) (Route, error) {
	if len(routes) == 0 {
		routes = []Route{RouteSimple}
	}
	vars := in.vars()
	vars["summary_docs"] = summaryDocs

	var out QueryType
	err := c.structured(ctx, graderProfile, Render(ClassifierPrompt(routes), vars), Render(classifyTurn, vars), in.History, classifierFormat(routes), &out)
	if err != nil {
		return "", fmt.Errorf("query classification: %w", err)
	}

	route, ok := ParseRoute(out.QueryType)
	if !ok {
		c.logger.Warn(ctx, "Classifier returned unknown route", map[string]interface{}{"query_type": out.QueryType})
		return RouteSimple, nil
	}
	c.logger.Info(ctx, "Query classified", map[string]interface{}{"route": string(route)})
	return route, nil
}
