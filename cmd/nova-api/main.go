package main

import (
	"context"
	"log"
	"net/http"

	httpadapter "github.com/novalabs/nova-agent/internal/adapters/http"
	"github.com/novalabs/nova-agent/internal/adapters/llm"
	firestorestore "github.com/novalabs/nova-agent/internal/adapters/storage/firestore"
	memstore "github.com/novalabs/nova-agent/internal/adapters/storage/memory"
	"github.com/novalabs/nova-agent/internal/app/dialog"
	"github.com/novalabs/nova-agent/internal/app/ledger"
	memoryapp "github.com/novalabs/nova-agent/internal/app/memory"
	"github.com/novalabs/nova-agent/internal/app/session"
	"github.com/novalabs/nova-agent/internal/config"
	"github.com/novalabs/nova-agent/internal/domain"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// Providers: mocks for dev, Groq + Gemini otherwise.
	var (
		dialogClient domain.DialogClient
		memoryClient domain.MemoryClient
	)

	if cfg.UseMockLLM {
		log.Println("[LLM] Using MOCK dialog and memory clients")
		dialogClient = llm.NewMockDialog()
		memoryClient = llm.NewMockMemory()
	} else {
		log.Println("[LLM] Using Groq dialog client and Gemini memory client")
		dialogClient = llm.NewGroqClient(cfg.DialogAPIKey, cfg.DialogBaseURL, cfg.DialogModel)

		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("error initializing Gemini client: %v", err)
		}
		memoryClient = gemini
	}

	// Storage: Firestore or Memory.
	var (
		sessionStore domain.SessionStore
		messageStore domain.MessageStore
		summaryStore domain.SummaryStore
		threadStore  domain.ThreadStore
		topicStore   domain.TopicStore
	)

	switch cfg.StorageBackend {
	case "firestore":
		log.Printf("[STORE] Using Firestore storage (project=%s)", cfg.GCPProjectID)
		fsStore, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore store: %v", err)
		}

		// 1 store, implements 5 interfaces
		sessionStore = fsStore
		messageStore = fsStore
		summaryStore = fsStore
		threadStore = fsStore
		topicStore = fsStore

	default:
		log.Println("[STORE] Using in-memory storage")
		sessionStore = memstore.NewSessionStore()
		messageStore = memstore.NewMessageStore()
		summaryStore = memstore.NewSummaryStore()
		threadStore = memstore.NewThreadStore()
		topicStore = memstore.NewTopicStore()
	}

	// Services.
	sessionSvc := session.NewService(sessionStore, cfg.SessionTimeout)
	ledgerSvc := ledger.NewService(sessionSvc, messageStore)
	memorySvc := memoryapp.NewService(ledgerSvc, memoryClient, summaryStore, threadStore, topicStore)
	sessionSvc.SetAnalyzer(memorySvc)
	dialogSvc := dialog.NewService(ledgerSvc, memorySvc, dialogClient)

	// HTTP server.
	handler := httpadapter.NewServer(sessionSvc, ledgerSvc, memorySvc, dialogSvc)

	addr := ":" + cfg.Port
	log.Println("Nova API listening on port:", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal(err)
	}
}
