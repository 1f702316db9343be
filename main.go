package main

import (
	"log"
	"os"
	"strings"

	"pixelsmith_back/animations"
	"pixelsmith_back/assets"
	"pixelsmith_back/characters"
	"pixelsmith_back/imagegen"
	"pixelsmith_back/projects"
	"pixelsmith_back/realtime"
	"pixelsmith_back/scenes"
	"pixelsmith_back/spritesheets"
	"pixelsmith_back/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func mustLoadEnv() {
	_ = godotenv.Load()
}

func corsMiddleware() gin.HandlerFunc {
	config := cors.DefaultConfig()
	if origins := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS")); origins != "" {
		config.AllowOrigins = strings.Split(origins, ",")
	} else {
		config.AllowAllOrigins = true
	}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Cache-Control", "X-Stream"}
	config.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	return cors.New(config)
}

func main() {
	mustLoadEnv()

	r := gin.Default()
	r.Use(corsMiddleware())

	generator, err := imagegen.NewClientFromEnv()
	if err != nil {
		log.Fatalf("init image model client: %v", err)
	}

	store, err := storage.NewImageStoreFromEnv()
	if err != nil {
		log.Fatalf("init image store: %v", err)
	}
	r.Static("/assets", store.BaseDir())

	references, err := storage.NewReferenceStorageFromEnv()
	if err != nil {
		log.Fatalf("init reference storage: %v", err)
	}

	hub := realtime.NewHub()
	realtime.RegisterRoutes(r, hub)

	if _, err := projects.RegisterRoutes(r); err != nil {
		log.Fatalf("register project routes: %v", err)
	}
	if _, err := assets.RegisterRoutes(r, store, references); err != nil {
		log.Fatalf("register asset routes: %v", err)
	}
	if _, err := characters.RegisterRoutes(r, generator, store); err != nil {
		log.Fatalf("register character routes: %v", err)
	}
	if _, err := scenes.RegisterRoutes(r, generator, store); err != nil {
		log.Fatalf("register scene routes: %v", err)
	}
	if _, err := spritesheets.RegisterRoutes(r, generator, store); err != nil {
		log.Fatalf("register spritesheet routes: %v", err)
	}
	if _, err := animations.RegisterRoutes(r, generator, store, hub); err != nil {
		log.Fatalf("register animation routes: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("start server: %v", err)
	}
}
