package world

import "time"

// AddWeather 通过钩子创建区域天气, 已存在时返回现有的
func (w *World) AddWeather(zone uint32) (Weather, bool) {
	if weather, ok := w.weathers[zone]; ok {
		return weather, true
	}
	if w.hooks.Weather == nil {
		return nil, false
	}
	weather, ok := w.hooks.Weather(zone)
	if !ok || weather == nil {
		return nil, false
	}
	w.weathers[zone] = weather
	return weather, true
}

func (w *World) FindWeather(zone uint32) (Weather, bool) {
	weather, ok := w.weathers[zone]
	return weather, ok
}

func (w *World) RemoveWeather(zone uint32) {
	delete(w.weathers, zone)
}

func (w *World) updateWeathers(diff time.Duration) {
	for zone, weather := range w.weathers {
		if !weather.Update(diff) {
			delete(w.weathers, zone)
		}
	}
}
