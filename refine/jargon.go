package refine

// defaultJargon maps spoken/lowercase technical terms to their canonical
// spelling. Keys are lowercase.
var defaultJargon = map[string]string{
	// Languages
	"python":     "Python",
	"javascript": "JavaScript",
	"typescript": "TypeScript",
	"java":       "Java",
	"golang":     "Go",
	"rust":       "Rust",
	"kotlin":     "Kotlin",
	"swift":      "Swift",

	// AI/ML
	"rag":          "RAG",
	"llm":          "LLM",
	"gpt":          "GPT",
	"nlp":          "NLP",
	"ml":           "ML",
	"ai":           "AI",
	"openai":       "OpenAI",
	"langchain":    "LangChain",
	"langgraph":    "LangGraph",
	"hugging face": "Hugging Face",
	"huggingface":  "HuggingFace",
	"pytorch":      "PyTorch",
	"tensorflow":   "TensorFlow",

	// Databases
	"sql":           "SQL",
	"nosql":         "NoSQL",
	"postgresql":    "PostgreSQL",
	"mysql":         "MySQL",
	"mongodb":       "MongoDB",
	"redis":         "Redis",
	"elasticsearch": "Elasticsearch",

	// Web and APIs
	"api":       "API",
	"rest":      "REST",
	"restful":   "RESTful",
	"graphql":   "GraphQL",
	"json":      "JSON",
	"xml":       "XML",
	"yaml":      "YAML",
	"http":      "HTTP",
	"https":     "HTTPS",
	"websocket": "WebSocket",

	// DevOps and cloud
	"aws":        "AWS",
	"azure":      "Azure",
	"gcp":        "GCP",
	"docker":     "Docker",
	"kubernetes": "Kubernetes",
	"k8s":        "K8s",
	"ci/cd":      "CI/CD",
	"cicd":       "CI/CD",
	"devops":     "DevOps",
	"nginx":      "Nginx",
	"apache":     "Apache",

	// Frameworks
	"react":   "React",
	"reactjs": "React.js",
	"vue":     "Vue",
	"vuejs":   "Vue.js",
	"vue.js":  "Vue.js",
	"angular": "Angular",
	"django":  "Django",
	"flask":   "Flask",
	"fastapi": "FastAPI",
	"nextjs":  "Next.js",
	"next.js": "Next.js",

	// Roles and product terms
	"sde": "SDE",
	"ui":  "UI",
	"ux":  "UX",
	"seo": "SEO",
	"mvp": "MVP",
	"poc": "POC",
	"sdk": "SDK",
	"ide": "IDE",
	"cli": "CLI",
	"gui": "GUI",

	// Version control and tools
	"git":       "Git",
	"github":    "GitHub",
	"gitlab":    "GitLab",
	"bitbucket": "Bitbucket",
	"vscode":    "VS Code",

	// Networking and security
	"oauth": "OAuth",
	"jwt":   "JWT",
	"ssl":   "SSL",
	"tls":   "TLS",
	"cdn":   "CDN",
	"dns":   "DNS",
	"ssh":   "SSH",
	"ftp":   "FTP",
	"vpn":   "VPN",
}

// DefaultJargon returns a copy of the built-in table.
func DefaultJargon() map[string]string {
	out := make(map[string]string, len(defaultJargon))
	for k, v := range defaultJargon {
		out[k] = v
	}
	return out
}

// contractions repairs apostrophe-less contractions. Forms that are also
// ordinary words (its, were, well, ill, id, wed) are not listed.
var contractions = map[string]string{
	"im":       "I'm",
	"ive":      "I've",
	"youre":    "you're",
	"youve":    "you've",
	"youll":    "you'll",
	"youd":     "you'd",
	"hes":      "he's",
	"shes":     "she's",
	"weve":     "we've",
	"theyre":   "they're",
	"theyve":   "they've",
	"theyll":   "they'll",
	"theyd":    "they'd",
	"dont":     "don't",
	"doesnt":   "doesn't",
	"didnt":    "didn't",
	"cant":     "can't",
	"couldnt":  "couldn't",
	"wouldnt":  "wouldn't",
	"shouldnt": "shouldn't",
	"wont":     "won't",
	"isnt":     "isn't",
	"arent":    "aren't",
	"wasnt":    "wasn't",
	"werent":   "weren't",
	"hasnt":    "hasn't",
	"havent":   "haven't",
	"hadnt":    "hadn't",
}
