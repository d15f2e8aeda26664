package assistant

// defaultSystemPrompt grounds the answer in the retrieved passages.
// Variables: {organization}, {sentences}, {context}.
const defaultSystemPrompt = `You are an information assistant for {organization}.
Use the retrieved context below to answer the user's question.
If the context does not contain the answer, say that you don't know. Do not make anything up.
Answer concisely, in at most {sentences} sentences, in the language of the question.

Context:
{context}`

// defaultContextualizePrompt rewrites a follow-up into a standalone question.
const defaultContextualizePrompt = `Given the chat history and the latest user question, which may refer to
earlier turns, rewrite the question so that it can be understood without the
chat history. Resolve pronouns and ellipsis using the history.
Do NOT answer the question. Do not add information that the question and the
history do not imply. If the question is already standalone, return it unchanged.
Reply with the question only.`

// Template variable names.
const (
	varHistory      = "chat_history"
	varInput        = "input"
	varContext      = "context"
	varSentences    = "sentences"
	varOrganization = "organization"
)
