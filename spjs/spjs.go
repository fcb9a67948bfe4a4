// Package spjs is a client for Serial Port JSON Server, used when the
// light controller hangs off a network bridge instead of a local port.
package spjs

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Client struct {
	url string
	log zerolog.Logger

	outgoing  chan message
	incomming chan interface{}
}

type message struct {
	done    chan struct{}
	payload []byte
}

// DataFrame is a line read from a port behind the server.
type DataFrame struct {
	Port string `json:"P"`
	Data string `json:"D"`
}

// CmdStatus reports the lifecycle of a queued command: Queued, Write,
// Complete, or WipedQueue.
type CmdStatus struct {
	Cmd        string
	QueueCount int `json:"QCnt"`
	Type       []string
	Data       []string `json:"D"`
	ID         string   `json:"Id"`
}

type ErrorMessage struct {
	Error string
}

type SerialPortList struct {
	SerialPorts []SerialPort
}

type SerialPort struct {
	Name     string
	Friendly string
	IsOpen   bool
	Baud     int
}

func NewClient(url string, log zerolog.Logger) *Client {
	c := &Client{
		url:       url,
		log:       log.With().Str("component", "spjs").Logger(),
		outgoing:  make(chan message, 1000),
		incomming: make(chan interface{}, 1000),
	}

	go c.loop()

	return c
}

// Messages delivers every parsed frame from the server.
func (c *Client) Messages() chan interface{} {
	return c.incomming
}

func parseMessage(data []byte, msg map[string]json.RawMessage) (val interface{}, err error) {
	check := func(fieldName string, v interface{}) bool {
		if msg[fieldName] == nil {
			return false
		}
		val = v
		err = json.Unmarshal(data, val)
		return true
	}
	if check("Error", &ErrorMessage{}) {
		return
	}
	if check("SerialPorts", &SerialPortList{}) {
		return
	}
	if check("Type", &CmdStatus{}) {
		return
	}
	if check("D", &DataFrame{}) {
		return
	}

	return nil, errors.New("unknown message: " + string(data))
}

func (c *Client) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.log.Error().Err(err).Msg("read")
			return
		}
		if !bytes.HasPrefix(data, []byte("{")) {
			// echo messages
			continue
		}
		var msg map[string]json.RawMessage
		if err = json.Unmarshal(data, &msg); err != nil {
			c.log.Error().Err(err).Msg("decode")
			continue
		}
		val, err := parseMessage(data, msg)
		if err != nil {
			c.log.Error().Err(err).Msg("parse")
			continue
		}
		c.incomming <- val
	}
}

func (c *Client) loop() {
	var nextUp message

reconnect:
	for {
		c.log.Info().Str("url", c.url).Msg("connecting")
		ws, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			c.log.Error().Err(err).Msg("connect")
			time.Sleep(3 * time.Second)
			continue
		}
		c.log.Info().Msg("connected")
		ch := make(chan struct{})
		go c.readLoop(ws, ch)
		go c.WriteString("list") // refresh port list on reconnect

		for {
			if nextUp.done != nil {
				err = ws.WriteMessage(websocket.TextMessage, nextUp.payload)
				if err != nil {
					c.log.Error().Err(err).Msg("send")
					continue reconnect
				}
				close(nextUp.done)
				nextUp.done = nil
			}

			select {
			case <-ch:
				continue reconnect
			case nextUp = <-c.outgoing:
			}
		}
	}
}

// JSON is the sendjson request body: lines to write to one port, each
// tagged with an ID the server echoes back in CmdStatus frames.
type JSON struct {
	Port string `json:"P"`
	Data []Data
}

type Data struct {
	Data string `json:"D"`
	ID   string `json:"Id"`
}

// SendJSON queues v and blocks until it reaches the server.
func (c *Client) SendJSON(v JSON) {
	data, err := json.Marshal(v)
	if err != nil {
		// only reachable with a bad JSON value built by us
		c.log.Panic().Err(err).Msg("sendjson marshal")
		return
	}

	ch := make(chan struct{})
	c.outgoing <- message{done: ch, payload: append([]byte("sendjson "), data...)}
	<-ch
}

// WriteString queues a raw command line and blocks until it reaches the
// server.
func (c *Client) WriteString(data string) {
	ch := make(chan struct{})
	c.outgoing <- message{done: ch, payload: []byte(data)}
	<-ch
}
