package chains

// Canned user-facing messages
const (
	// ContentSafetyFallback is streamed when the provider rejects a prompt on content grounds
	ContentSafetyFallback = "Thank you for reaching out. Your query does not seem to be " +
		"related to professional or work-related topics. Please " +
		"ensure your questions are relevant to your role at the organization. " +
		"I'm here to assist you with any work-related issues you may have.\n\n" +
		"Kindly start a new chat. Goodbye!"

	// ContentPolicyHTTPMessage is returned by the API when a request trips the content policy
	ContentPolicyHTTPMessage = "Your request was blocked due to triggering our content " +
		"management policy. Unfortunately, this conversation cannot continue. " +
		"Please modify your prompt and try again."

	// InternalErrorMessage is returned by the API for any other failure
	InternalErrorMessage = "An internal server error occurred. Please try again later."

	// NoImageContext is used when the user attached no image
	NoImageContext = "No image was provided. Please proceed with the any other available " +
		"contextual information."

	// FilteredImageContext is used when image extraction tripped the content policy
	FilteredImageContext = "The image context could not be extracted because the prompt " +
		"triggered content management policy. Please modify your prompt and retry."

	// NoSharedDocuments is the document summary when the request carries no doc ids
	NoSharedDocuments = "No uploaded or shared documents by the user."

	// DefaultTopic is the topic label used when nothing better is produced
	DefaultTopic = "General Topic"
)

// Stages of a file or image generation request, fed to the assistant
const (
	StageReceived = "Scenario 1: You just received the human request."
	stageSuccess  = "Scenario 2: %s\n\nLet the user know."
	stageFailure  = "Scenario 3: %s\n\nLet the user know."
)
