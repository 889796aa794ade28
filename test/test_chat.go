package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const baseURL = "http://localhost:8080"

// Manual smoke test against a running server: send a chat turn, fetch the
// history back, then exercise the TTS endpoint.
func main() {
	fmt.Println("Starting chat smoke test...")

	if err := sendMessage("probador", "Hola, ¿qué día es hoy?"); err != nil {
		log.Fatalf("Failed to send message: %v", err)
	}
	if err := fetchHistory("probador"); err != nil {
		log.Fatalf("Failed to fetch history: %v", err)
	}
	if err := synthesize("Hola, esto es una prueba."); err != nil {
		log.Fatalf("Failed to synthesize: %v", err)
	}

	fmt.Println("Chat smoke test completed successfully!")
}

func sendMessage(username, content string) error {
	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"content":  content,
	})

	client := &http.Client{Timeout: 90 * time.Second}
	start := time.Now()
	resp, err := client.Post(baseURL+"/api/messages", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %v", err)
	}

	fmt.Printf("Turn completed in %v\n", time.Since(start))
	fmt.Printf("Response status: %d\n", resp.StatusCode)
	fmt.Printf("Response body: %s\n", string(body))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func fetchHistory(username string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/messages/" + username)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("history fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var messages []map[string]interface{}
	if err := json.Unmarshal(body, &messages); err != nil {
		return fmt.Errorf("failed to decode history: %v", err)
	}
	fmt.Printf("History contains %d messages\n", len(messages))
	return nil
}

func synthesize(text string) error {
	payload, _ := json.Marshal(map[string]string{"text": text})

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(baseURL+"/api/tts", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tts failed with status %d: %s", resp.StatusCode, string(audio))
	}
	fmt.Printf("Received %d bytes of audio\n", len(audio))
	return nil
}
