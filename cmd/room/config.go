package main

type Config struct {
	ServerURL string `env:"SERVER_URL,required=true"`
	Room      string `env:"ROOM,required=true"`
	Identity  string `env:"IDENTITY,required=true"`
	Name      string `env:"NAME"`
	Username  string `env:"USERNAME"`
	Password  string `env:"PASSWORD"`
	LogLevel  string `env:"LOG_LEVEL,required=true"`
	Colours   bool   `env:"COLOURS"`
}
